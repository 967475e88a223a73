//go:build linux

package watch

import "golang.org/x/sys/unix"

// Local, short aliases for the inotify mask bits this package cares
// about — named the way backend_inotify.go names its local flags
// variable when it builds up a watch's registration mask.
const (
	inAttrib     = unix.IN_ATTRIB
	inModify     = unix.IN_MODIFY
	inCreate     = unix.IN_CREATE
	inDelete     = unix.IN_DELETE
	inDeleteSelf = unix.IN_DELETE_SELF
	inMoved_from = unix.IN_MOVED_FROM
	inMoved_to   = unix.IN_MOVED_TO
	inMoveSelf   = unix.IN_MOVE_SELF
	inIsDir      = unix.IN_ISDIR
	inIgnored    = unix.IN_IGNORED
	inQOverflow  = unix.IN_Q_OVERFLOW

	// watchMask is requested on every watch this package registers. The
	// engine's Sync-level handlers decide which kinds trigger an action;
	// the kernel mask itself always asks for the full set so recursion
	// (which needs Create on directories regardless of policy) and
	// watch teardown (DeleteSelf) always work. MoveSelf is requested as
	// well, but kernel.Read drops those records.
	watchMask = inAttrib | inModify | inCreate | inDelete | inDeleteSelf |
		inMoved_from | inMoved_to | inMoveSelf
)
