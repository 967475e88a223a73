//go:build linux

package watch

import "github.com/lipengyu/lsyncd/internal/event"

// RawEvent is a single decoded inotify record: one kernel watch
// descriptor, its mask, and (if the kernel appended one) a filename.
// Translating unix.InotifyEvent into this shape is the one piece of
// backend_inotify.go's readEvents loop this package keeps verbatim in
// spirit — same buffer-walk, same unix.SizeofInotifyEvent arithmetic —
// generalized from fsnotify's bitmask Event.Op to the engine's closed
// event.Kind.
type RawEvent struct {
	Wd       int32
	Kind     event.Kind
	IsDir    bool
	Filename string // empty when the kernel didn't append a name (self events)
	Cookie   uint32
	// SelfRemoved is set for IN_DELETE_SELF: the watched directory
	// itself is gone and the kernel has already invalidated Wd. The
	// manager prunes wdlist[Wd] when this is set. A record carrying only
	// IN_MOVE_SELF maps to no Kind, so kernel.Read drops it and the wd
	// is not pruned.
	SelfRemoved bool
	// rawMask is the unmodified kernel mask, kept only for Debug-level
	// tracing (see maskString in debug_linux.go).
	rawMask uint32
}

// kindFromMask maps an inotify mask to the engine's closed Kind set.
// IN_IGNORED and masks with no corresponding Kind return (None, false):
// callers should drop such records rather than offering them.
func kindFromMask(mask uint32) (event.Kind, bool) {
	switch {
	case mask&inMoved_from != 0:
		return event.MoveFrom, true
	case mask&inMoved_to != 0:
		return event.MoveTo, true
	case mask&(inCreate) != 0:
		return event.Create, true
	case mask&(inDelete|inDeleteSelf) != 0:
		return event.Delete, true
	case mask&inModify != 0:
		return event.Modify, true
	case mask&inAttrib != 0:
		return event.Attrib, true
	default:
		return event.None, false
	}
}
