package dispatcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lipengyu/lsyncd/internal/logging"
)

// ChildExit is how an action implementation reports that a spawned
// child has exited. Action packages send on the exits channel passed to
// Run from the goroutine they use to wait on the child (see
// internal/action), which
// plays the role spec.md §6 assigns to the host's on_child_exit
// callback.
type ChildExit struct {
	Pid  int
	Code int
}

// wakeable is satisfied by *watch.Manager; kept as an interface here so
// this package does not need to import watch (which would create an
// import cycle the moment watch needs anything dispatcher-shaped).
type wakeable interface {
	Woke() <-chan struct{}
}

// Run is the host loop spec.md §5 describes: compute next_alarm, block
// on the earliest of (alarm expiry, kernel notification, child exit),
// deliver the corresponding callback, repeat. Once ctx is cancelled it
// drains in-flight children (bounded by drainTimeout) before returning,
// so a SIGTERM/SIGINT during an active sync does not orphan a running
// rsync child.
func (d *Dispatcher) Run(ctx context.Context, wm wakeable, exits <-chan ChildExit) {
	for {
		timer, stop := d.alarmTimer()

		select {
		case <-ctx.Done():
			stop()
			d.drain(exits)
			return
		case exit := <-exits:
			stop()
			d.Collect(exit.Pid, exit.Code)
		case <-wm.Woke():
			stop()
		case <-timer:
		}

		d.Tick(d.clock.Now())
	}
}

// drain waits for every in-flight child to exit, collecting each one as
// it does, until none remain or drainTimeout elapses. Remaining
// children at the deadline are left running; Run returns regardless so
// shutdown is always bounded.
func (d *Dispatcher) drain(exits <-chan ChildExit) {
	if d.drainTimeout <= 0 || d.liveChildren() == 0 {
		return
	}

	t := time.NewTimer(d.drainTimeout)
	defer t.Stop()
	deadline := t.C

	logging.Log(d.log, logging.Normal, "shutdown: draining in-flight children", logrus.Fields{"count": d.liveChildren()})

	for d.liveChildren() > 0 {
		select {
		case exit := <-exits:
			d.Collect(exit.Pid, exit.Code)
		case <-deadline:
			logging.Log(d.log, logging.Error, "shutdown drain deadline exceeded; exiting with children still running", logrus.Fields{"count": d.liveChildren()})
			return
		}
	}
}

// alarmTimer returns a channel that fires at the next alarm (or a nil
// channel, which blocks forever, if no Sync has a pending delay) and a
// stop function the caller must call once the channel is no longer
// needed, to release the underlying time.Timer.
func (d *Dispatcher) alarmTimer() (<-chan time.Time, func()) {
	next, ok := d.NextAlarm()
	if !ok {
		return nil, func() {}
	}
	wait := time.Until(next)
	if wait < 0 {
		wait = 0
	}
	t := time.NewTimer(wait)
	return t.C, func() { t.Stop() }
}
