// Package dispatcher implements spec.md §4.4: the alarm-driven
// dispatcher that releases delays into bounded worker subprocesses and
// reaps them. It has no state of its own beyond what the registry and
// its Syncs already carry — NextAlarm, Tick and Collect are pure
// functions over that shared state, as spec.md's "State: none beyond
// what the components above carry" requires.
package dispatcher

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lipengyu/lsyncd/internal/clock"
	"github.com/lipengyu/lsyncd/internal/event"
	"github.com/lipengyu/lsyncd/internal/logging"
	"github.com/lipengyu/lsyncd/internal/mirror"
	"github.com/lipengyu/lsyncd/internal/registry"
)

// DefaultDrainTimeout bounds how long Run waits for in-flight children
// to exit once its context is cancelled before giving up and returning
// anyway, so a wedged rsync can never block shutdown forever.
const DefaultDrainTimeout = 30 * time.Second

// Dispatcher is the top-level control loop described in spec.md §4.4.
type Dispatcher struct {
	reg   *registry.Registry
	clock *clock.Clock
	log   *logrus.Entry

	drainTimeout time.Duration
}

// New builds a Dispatcher over reg, sharing clk and log with every
// registered Sync.
func New(reg *registry.Registry, clk *clock.Clock, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		reg:          reg,
		clock:        clk,
		log:          log.WithField("component", "dispatcher"),
		drainTimeout: DefaultDrainTimeout,
	}
}

// SetDrainTimeout overrides the default shutdown drain deadline. A
// non-positive value disables draining entirely (Run returns as soon as
// ctx is cancelled, as before).
func (d *Dispatcher) SetDrainTimeout(timeout time.Duration) {
	d.drainTimeout = timeout
}

// liveChildren sums process-table occupancy across every registered
// Sync, for the shutdown drain to know when it can stop waiting.
func (d *Dispatcher) liveChildren() int {
	total := 0
	for _, s := range d.reg.All() {
		total += s.ProcessCount()
	}
	return total
}

// NextAlarm reports the earliest alarm across every Sync that has a
// pending delay and a free worker slot, for the host loop to sleep on
// (spec.md §4.4 next_alarm). The second return is false if no Sync
// qualifies, in which case the host may sleep indefinitely.
func (d *Dispatcher) NextAlarm() (clock.Time, bool) {
	var earliest clock.Time
	found := false
	for _, s := range d.reg.All() {
		if !s.HasFreeSlot() {
			continue
		}
		alarm, ok := s.HeadAlarm()
		if !ok {
			continue
		}
		if !found {
			earliest = alarm
			found = true
			continue
		}
		earliest = d.clock.Earlier(earliest, alarm)
	}
	return earliest, found
}

// Tick makes one pass over every Sync (spec.md §4.4 tick): for each with
// a free worker slot whose head delay's alarm has elapsed, it pops that
// delay and invokes the configured action. It processes at most one
// delay per Sync per call; callers drain further delays with repeated
// calls, exactly as spec.md specifies.
func (d *Dispatcher) Tick(now clock.Time) {
	for _, s := range d.reg.All() {
		if !s.HasFreeSlot() {
			continue
		}
		delay, ok := s.PopIfReady(now)
		if !ok {
			continue
		}
		d.dispatchOne(s, delay)
	}
}

func (d *Dispatcher) dispatchOne(s *mirror.Sync, delay *event.Delay) {
	log := s.Logger().WithFields(logrus.Fields{
		"pathname":    delay.Pathname,
		"kind":        delay.Kind.String(),
		"correlation": uuid.NewString(),
	})

	handler, ok := s.Config.HandlerFor(delay.Kind)
	if !ok {
		logging.Log(log, logging.Error, "no handler configured for this event kind; dropping", nil)
		return
	}

	inlet := mirror.NewInlet(s, delay)
	pid := handler(inlet)
	if pid <= 0 {
		logging.Log(log, logging.Debug, "action declined to spawn a child", nil)
		return
	}
	s.RegisterChild(pid, delay)
	logging.Log(log, logging.Debug, "spawned child", logrus.Fields{"pid": pid})
}

// Collect locates the Sync owning pid, logs the outcome and frees its
// process-table slot (spec.md §4.4 collect). Exit code is observational
// in steady state (spec.md §7 item 5) — no retry policy lives in the
// core engine.
func (d *Dispatcher) Collect(pid int, exitCode int) {
	for _, s := range d.reg.All() {
		delay, ok := s.ReleaseChild(pid)
		if !ok {
			continue
		}
		fields := logrus.Fields{"pid": pid, "exit_code": exitCode}
		if delay != nil {
			fields["pathname"] = delay.Pathname
			fields["kind"] = delay.Kind.String()
		}
		if exitCode != 0 {
			logging.Log(s.Logger(), logging.Debug, "child exited nonzero", fields)
		} else {
			logging.Log(s.Logger(), logging.Debug, "child exited", fields)
		}
		return
	}
	logging.Log(d.log, logging.Debug, "collect for unknown pid (already reaped or never tracked)", logrus.Fields{"pid": pid, "exit_code": exitCode})
}
