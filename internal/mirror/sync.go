package mirror

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lipengyu/lsyncd/internal/clock"
	"github.com/lipengyu/lsyncd/internal/event"
	"github.com/lipengyu/lsyncd/internal/logging"
)

// Sync is one configured (source tree, target identifier, policy)
// triple. All mutation happens through its exported methods, which take
// Sync.mu; callers never reach into delays/delayname/processes directly.
// The mutex serializes the watch manager's read goroutine, which calls
// Offer, against the dispatcher goroutine, which pops delays and tracks
// children, so each call runs to completion as in spec.md §5.
type Sync struct {
	Source      string
	TargetIdent string
	Config      Config

	clock clockLike
	log   *logrus.Entry

	mu        sync.Mutex
	delays    []*event.Delay          // FIFO, head = oldest = index 0
	delayname map[string]*event.Delay // pathname -> oldest pending delay
	processes map[int]*event.Delay    // pid -> delay being serviced
}

// New constructs a Sync. clk and log are injected so the dispatcher can
// share one Clock and one structured logger across every configured Sync.
func New(source, targetIdent string, cfg Config, clk clockLike, log *logrus.Entry) *Sync {
	return &Sync{
		Source:      source,
		TargetIdent: targetIdent,
		Config:      cfg,
		clock:       clk,
		log:         log.WithFields(logrus.Fields{"source": source, "target": targetIdent}),
		delayname:   make(map[string]*event.Delay),
		processes:   make(map[int]*event.Delay),
	}
}

// Offer is the public entry point of the delay queue (spec.md §4.2).
// time/hasTime models the optional "time" parameter: hasTime is false
// when no arrival time is known, in which case the alarm is "now". The
// Delete/Create halves of a Move split are offered with the caller's
// original at/hasTime.
func (s *Sync) Offer(kind event.Kind, at clock.Time, hasTime bool, pathname, pathname2 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offerLocked(kind, at, hasTime, pathname, pathname2)
}

func (s *Sync) offerLocked(kind event.Kind, at clock.Time, hasTime bool, pathname, pathname2 string) {
	// Step 1: move translation.
	if kind == event.Move && s.Config.OnMove == nil {
		s.offerLocked(event.Delete, at, hasTime, pathname, "")
		s.offerLocked(event.Create, at, hasTime, pathname2, "")
		return
	}

	// Step 2: alarm selection.
	alarm := s.clock.Now()
	if hasTime && s.Config.Delay > 0 {
		alarm = s.clock.Add(at, s.Config.Delay)
	}

	old, exists := s.delayname[pathname]
	if !exists {
		d := &event.Delay{Kind: kind, Pathname: pathname, Pathname2: pathname2, Alarm: alarm}
		s.delays = append(s.delays, d)
		s.delayname[pathname] = d
		return
	}

	tail := old.Tail()

	// Step 4: move exemption — bypasses the collapse table entirely.
	if tail.Kind.IsMove() || kind.IsMove() {
		logging.Log(s.log, logging.Debug, "move exemption: dropping event that would collapse with a move delay", logrus.Fields{"pathname": pathname, "prior": tail.Kind, "new": kind})
		return
	}

	// Step 3: collapse resolution.
	verdict := s.Config.collapseTable().Resolve(tail.Kind, kind)
	switch {
	case verdict == event.Cancel:
		tail.Kind = event.None
		if tail == old {
			delete(s.delayname, pathname)
		}
	case verdict == event.Stack:
		d := &event.Delay{Kind: kind, Pathname: pathname, Pathname2: pathname2, Alarm: alarm}
		tail.Next = d
		s.delays = append(s.delays, d)
	default:
		target, _ := verdict.AsKind()
		tail.Kind = target
	}
}

// PopIfReady returns and removes the head delay iff its alarm has
// elapsed and a worker slot is free. Leading None delays (cancelled) are
// popped silently first and never returned as ready.
func (s *Sync) PopIfReady(now clock.Time) (*event.Delay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.delays) > 0 && s.delays[0].Kind == event.None {
		s.spliceHeadLocked()
	}
	if len(s.delays) == 0 {
		return nil, false
	}
	if len(s.processes) >= s.Config.maxProcesses() {
		return nil, false
	}
	head := s.delays[0]
	if !s.clock.BeforeOrEqual(head.Alarm, now) {
		return nil, false
	}
	s.spliceHeadLocked()
	return head, true
}

// HeadAlarm reports the alarm of the head delay, skipping (and
// discarding) any leading None delays, for use by Dispatcher.NextAlarm.
// The second return is false if delays is empty after discarding.
func (s *Sync) HeadAlarm() (clock.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.delays) > 0 && s.delays[0].Kind == event.None {
		s.spliceHeadLocked()
	}
	if len(s.delays) == 0 {
		return clock.Time{}, false
	}
	return s.delays[0].Alarm, true
}

// HasFreeSlot reports whether this Sync can accept another child.
func (s *Sync) HasFreeSlot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processes) < s.Config.maxProcesses()
}

// spliceHeadLocked removes delays[0], maintaining the delayname
// invariant: if the removed delay was the one indexed by its pathname,
// promote its stacked successor (if any) into the index, else drop the
// pathname entirely. Caller must hold s.mu.
func (s *Sync) spliceHeadLocked() {
	head := s.delays[0]
	s.delays = s.delays[1:]

	if cur, ok := s.delayname[head.Pathname]; ok && cur == head {
		if head.Next != nil {
			s.delayname[head.Pathname] = head.Next
		} else {
			delete(s.delayname, head.Pathname)
		}
	}
}

// RegisterChild records a spawned child against the delay it is
// servicing. pid <= 0 is "declined to spawn" and is a no-op (spec.md
// §4.2 "Child tracking").
func (s *Sync) RegisterChild(pid int, d *event.Delay) {
	if pid <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processes[pid] = d
}

// ReleaseChild frees the process-table slot for pid, returning the delay
// it was servicing (for logging) and whether pid was known.
func (s *Sync) ReleaseChild(pid int) (*event.Delay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.processes[pid]
	if ok {
		delete(s.processes, pid)
	}
	return d, ok
}

// ProcessCount reports the number of live children, for the process-cap
// invariant check in tests and for the status report.
func (s *Sync) ProcessCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processes)
}

// PendingCount reports the number of queued (non-popped) delays,
// including stacked and soon-to-be-discarded None ones.
func (s *Sync) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

// Logger exposes the Sync's structured logger to the dispatcher, which
// needs it to log spawn/collect outcomes scoped to this Sync.
func (s *Sync) Logger() *logrus.Entry { return s.log }
