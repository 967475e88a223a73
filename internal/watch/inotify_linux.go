//go:build linux

package watch

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lipengyu/lsyncd/internal"
)

// ErrOverflow is returned from kernel.Read when the kernel reports that
// its event queue overflowed (spec.md §4.3 Overflow, §7 item 4): the
// engine's current policy is to treat this as fatal.
var ErrOverflow = errors.New("watch: inotify event queue overflowed")

// kernel is the one piece of this package that talks to the OS. It is
// deliberately narrow so the wdlist/recursion logic in manager.go stays
// free of syscall detail, the same separation backend_inotify.go draws
// between its Watcher (bookkeeping) and the raw unix.Inotify* calls.
type kernel struct {
	fd   int
	file *os.File
}

func newKernel() (*kernel, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("watch: inotify_init1: %w", err)
	}
	return &kernel{fd: fd, file: os.NewFile(uintptr(fd), "inotify")}, nil
}

func (k *kernel) AddWatch(path string, mask uint32) (int32, error) {
	wd, err := unix.InotifyAddWatch(k.fd, path, mask)
	if wd == -1 {
		return 0, err
	}
	return int32(wd), nil
}

func (k *kernel) RemoveWatch(wd int32) error {
	_, err := unix.InotifyRmWatch(k.fd, uint32(wd))
	return err
}

func (k *kernel) Close() error {
	return k.file.Close()
}

// Read blocks until at least one inotify record is available and
// returns the decoded batch. This is backend_inotify.go's readEvents
// buffer walk, generalized from building fsnotify.Event values to
// building watch.RawEvent values and returning a batch instead of
// pushing onto a channel (the caller, Manager.run, routes the batch).
func (k *kernel) Read() ([]RawEvent, error) {
	var buf [unix.SizeofInotifyEvent * 4096]byte

	n, err := internal.IgnoringEINTR(func() (int, error) { return k.file.Read(buf[:]) })
	if errors.Is(err, os.ErrClosed) {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if n < unix.SizeofInotifyEvent {
		return nil, fmt.Errorf("watch: short read from inotify fd (%d bytes)", n)
	}

	var (
		out    []RawEvent
		offset uint32
	)
	for offset <= uint32(n)-unix.SizeofInotifyEvent {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		mask := uint32(raw.Mask)
		nameLen := uint32(raw.Len)
		advance := unix.SizeofInotifyEvent + nameLen

		if mask&inQOverflow != 0 {
			return out, ErrOverflow
		}
		if mask&inIgnored != 0 {
			offset += advance
			continue
		}

		var name string
		if nameLen > 0 {
			nameBytes := (*[unix.PathMax]byte)(unsafe.Pointer(&buf[offset+unix.SizeofInotifyEvent]))[:nameLen:nameLen]
			name = strings.TrimRight(string(nameBytes), "\x00")
		}

		kind, ok := kindFromMask(mask)
		if ok {
			out = append(out, RawEvent{
				Wd:          raw.Wd,
				Kind:        kind,
				IsDir:       mask&inIsDir != 0,
				Filename:    name,
				Cookie:      raw.Cookie,
				SelfRemoved: mask&(inDeleteSelf|inMoveSelf) != 0,
				rawMask:     mask,
			})
		}
		offset += advance
	}
	return out, nil
}
