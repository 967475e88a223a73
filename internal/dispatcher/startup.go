package dispatcher

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lipengyu/lsyncd/internal/logging"
	"github.com/lipengyu/lsyncd/internal/mirror"
)

// RunStartup executes every registered Sync's Startup handler
// synchronously and waits for all of them to exit, failing fast on any
// nonzero exit (spec.md §4.4 "Startup phase", §8 scenario 6). Callers
// must arm watches (via watch.Manager.Add) before calling RunStartup,
// not after — spec.md is explicit that "Watches are armed before the
// startup handlers run so that changes during bulk initial
// synchronization are captured".
//
// RunStartup is the sole waiter on each startup child's pid: a Startup
// handler (e.g. action.Rsync.Startup) must not also launch its own
// async reap, or both waiters race wait4 on the same pid and the loser
// gets ECHILD.
func (d *Dispatcher) RunStartup() error {
	type pending struct {
		sync *mirror.Sync
		pid  int
		proc *os.Process
	}

	var waiting []pending
	for _, s := range d.reg.All() {
		if s.Config.Startup == nil {
			continue
		}
		pid := s.Config.Startup(s.Source, s.TargetIdent)
		if pid <= 0 {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("dispatcher: startup for %s: find process %d: %w", s.Source, pid, err)
		}
		waiting = append(waiting, pending{sync: s, pid: pid, proc: proc})
	}

	for _, p := range waiting {
		state, err := p.proc.Wait()
		if err != nil {
			return fmt.Errorf("dispatcher: startup for %s: wait on pid %d: %w", p.sync.Source, p.pid, err)
		}
		if code := state.ExitCode(); code != 0 {
			return fmt.Errorf("dispatcher: startup child for %s (pid %d) exited %d", p.sync.Source, p.pid, code)
		}
		logging.Log(d.log, logging.Normal, "startup sync completed", logrus.Fields{
			"source": p.sync.Source,
			"pid":    p.pid,
		})
	}
	return nil
}
