// Package mirror implements one (source, target, policy) Sync: its delay
// queue, collapse resolution, and live child-process table. This is the
// "delay queue" component of spec.md §4.2, adapted from the teacher's
// watches struct in backend_inotify.go (a mutex-guarded pair of maps
// indexing the same underlying slice of records by two different keys).
package mirror

import (
	"github.com/lipengyu/lsyncd/internal/clock"
	"github.com/lipengyu/lsyncd/internal/event"
)

// Event is the record handed to an ActionFunc: the resolved source and
// target paths for one delay, plus its kind. It is the concrete type
// behind the spec's "inlet.nextevent()" record (§4.4).
type Event struct {
	SourcePath string
	TargetPath string
	Kind       event.Kind
}

// ActionFunc spawns a child process to service one event and returns its
// PID, or a non-positive value if it declined to spawn (spec.md §4.2
// "Child tracking": pid <= 0 means "action declined to spawn").
type ActionFunc func(inlet *Inlet) int

// StartupFunc runs once per Sync after watches are armed and before the
// dispatcher enters its normal loop (spec.md §4.4 "Startup phase").
type StartupFunc func(source, targetIdent string) int

// Config is the policy governing one Sync: per-kind handlers, timing and
// concurrency limits, and the collapse table.
type Config struct {
	// Delay is the coalescing window in seconds. Zero (or negative)
	// disables deferral: offered events get an alarm of "now".
	Delay float64
	// MaxProcesses bounds concurrent children for this Sync. Values below
	// 1 are treated as 1.
	MaxProcesses int
	// CollapseTable resolves same-pathname event collisions. Defaults to
	// event.DefaultTable() if nil.
	CollapseTable event.Table

	// Action is the fallback handler used when no more specific per-kind
	// handler is configured.
	Action ActionFunc
	OnAttrib ActionFunc
	OnCreate ActionFunc
	OnModify ActionFunc
	OnDelete ActionFunc
	// OnMove, if set, receives Move events directly (pathname = from,
	// pathname2 = to). If absent, Move is pre-split into Delete/Create
	// per spec.md §4.2 step 1.
	OnMove ActionFunc

	// Startup, if set, runs once at daemon boot (spec.md §4.4).
	Startup StartupFunc
}

// HandlerFor returns the configured handler for kind, falling back to
// Action, and a bool reporting whether any handler at all was found.
func (c Config) HandlerFor(k event.Kind) (ActionFunc, bool) {
	var h ActionFunc
	switch k {
	case event.Attrib:
		h = c.OnAttrib
	case event.Create, event.MoveTo:
		h = c.OnCreate
	case event.Modify:
		h = c.OnModify
	case event.Delete, event.MoveFrom:
		h = c.OnDelete
	case event.Move:
		h = c.OnMove
	}
	if h == nil {
		h = c.Action
	}
	return h, h != nil
}

func (c Config) collapseTable() event.Table {
	if c.CollapseTable != nil {
		return c.CollapseTable
	}
	return event.DefaultTable()
}

func (c Config) maxProcesses() int {
	if c.MaxProcesses < 1 {
		return 1
	}
	return c.MaxProcesses
}

// clockLike is the subset of *clock.Clock a Sync needs; defined as an
// interface so tests can substitute a deterministic stand-in.
type clockLike interface {
	Now() clock.Time
	Add(t clock.Time, seconds float64) clock.Time
	BeforeOrEqual(a, b clock.Time) bool
}

// Validate checks that the Sync declaration surface required by spec.md
// §6 is satisfied: at least one of action/attrib/create/modify/delete/
// move must be configured.
func (c Config) Validate() error {
	if c.Action == nil && c.OnAttrib == nil && c.OnCreate == nil &&
		c.OnModify == nil && c.OnDelete == nil && c.OnMove == nil {
		return ErrNoHandler
	}
	return nil
}
