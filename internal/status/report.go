// Package status renders the on-demand status report spec.md §6
// describes: a timestamp header, a watch-descriptor count, then one
// line per descriptor listing its bindings.
package status

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/lipengyu/lsyncd/internal/watch"
)

// bindingsSource is satisfied by *watch.Manager.
type bindingsSource interface {
	Bindings() map[int32][]watch.Binding
}

// Write renders the status report to w.
func Write(w io.Writer, wm bindingsSource, now time.Time) error {
	bindings := wm.Bindings()

	if _, err := fmt.Fprintf(w, "lsyncd status at %s\n", now.Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Watching %d directories\n", len(bindings)); err != nil {
		return err
	}

	wds := make([]int32, 0, len(bindings))
	for wd := range bindings {
		wds = append(wds, wd)
	}
	sort.Slice(wds, func(i, j int) bool { return wds[i] < wds[j] })

	for _, wd := range wds {
		if _, err := fmt.Fprintf(w, "  %d:", wd); err != nil {
			return err
		}
		for _, b := range bindings[wd] {
			if _, err := fmt.Fprintf(w, " (%s/%s)", b.Sync.Source, b.Prefix); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
