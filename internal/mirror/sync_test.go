package mirror

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipengyu/lsyncd/internal/clock"
	"github.com/lipengyu/lsyncd/internal/event"
)

// fakeClock is a minimal clockLike stand-in: now is settable directly so
// tests can place events and pops at exact instants without racing a
// real clock.
type fakeClock struct {
	now clock.Time
}

func (f *fakeClock) Now() clock.Time { return f.now }
func (f *fakeClock) Add(t clock.Time, seconds float64) clock.Time {
	return t.Add(time.Duration(seconds * float64(time.Second)))
}
func (f *fakeClock) BeforeOrEqual(a, b clock.Time) bool {
	return a.Before(b) || a.Equal(b)
}

func noopAction(*Inlet) int { return 0 }

func newTestSync(t *testing.T, cfg Config) (*Sync, *fakeClock) {
	t.Helper()
	fc := &fakeClock{now: time.Unix(1000, 0)}
	log := logrus.NewEntry(logrus.New())
	if cfg.Action == nil {
		cfg.Action = noopAction
	}
	return New("/src", "/dst", cfg, fc, log), fc
}

func TestOffer_CreateThenDeleteAnnihilates(t *testing.T) {
	s, _ := newTestSync(t, Config{})

	s.Offer(event.Create, time.Unix(1000, 0), true, "a.txt", "")
	s.Offer(event.Delete, time.Unix(1000, 0), true, "a.txt", "")

	require.Equal(t, 1, s.PendingCount(), "cancelled delay stays in the slice until popped")
	_, ok := s.delayname["a.txt"]
	assert.False(t, ok, "delayname must be cleared once the sole delay for a pathname is cancelled")

	d, ready := s.PopIfReady(time.Unix(1000, 0))
	assert.False(t, ready, "a cancelled delay must never be returned as ready")
	assert.Nil(t, d)
	assert.Equal(t, 0, s.PendingCount(), "PopIfReady must splice out cancelled delays it skips over")
}

func TestOffer_DeleteThenCreateDegradesToModify(t *testing.T) {
	s, _ := newTestSync(t, Config{})

	s.Offer(event.Delete, time.Unix(1000, 0), true, "a.txt", "")
	s.Offer(event.Create, time.Unix(1000, 0), true, "a.txt", "")

	d, ready := s.PopIfReady(time.Unix(1000, 0))
	require.True(t, ready)
	assert.Equal(t, event.Modify, d.Kind, "delete then create must degrade to modify, not cancel")
}

func TestOffer_MoveSplitsIntoDeleteAndCreate(t *testing.T) {
	s, _ := newTestSync(t, Config{})

	s.Offer(event.Move, time.Unix(1000, 0), true, "old.txt", "new.txt")

	require.Equal(t, 2, s.PendingCount())
	_, hasOld := s.delayname["old.txt"]
	_, hasNew := s.delayname["new.txt"]
	assert.True(t, hasOld)
	assert.True(t, hasNew)

	first, ok := s.PopIfReady(time.Unix(1000, 0))
	require.True(t, ok)
	assert.Equal(t, event.Delete, first.Kind)
	assert.Equal(t, "old.txt", first.Pathname)

	second, ok := s.PopIfReady(time.Unix(1000, 0))
	require.True(t, ok)
	assert.Equal(t, event.Create, second.Kind)
	assert.Equal(t, "new.txt", second.Pathname)
}

func TestOffer_MoveNotSplitWhenOnMoveConfigured(t *testing.T) {
	s, _ := newTestSync(t, Config{OnMove: noopAction})

	s.Offer(event.Move, time.Unix(1000, 0), true, "old.txt", "new.txt")

	require.Equal(t, 1, s.PendingCount())
	d, ok := s.PopIfReady(time.Unix(1000, 0))
	require.True(t, ok)
	assert.Equal(t, event.Move, d.Kind)
	assert.Equal(t, "old.txt", d.Pathname)
	assert.Equal(t, "new.txt", d.Pathname2)
}

func TestOffer_IdempotentSameKindCollapse(t *testing.T) {
	s, _ := newTestSync(t, Config{})

	s.Offer(event.Modify, time.Unix(1000, 0), true, "a.txt", "")
	s.Offer(event.Modify, time.Unix(1000, 1), true, "a.txt", "")
	s.Offer(event.Modify, time.Unix(1000, 2), true, "a.txt", "")

	assert.Equal(t, 1, s.PendingCount(), "repeated modify events for the same pathname must collapse into one delay")
	d, ok := s.PopIfReady(time.Unix(1000, 0))
	require.True(t, ok)
	assert.Equal(t, event.Modify, d.Kind)
}

func TestOffer_MoveExemptFromCollapse(t *testing.T) {
	s, _ := newTestSync(t, Config{})

	s.Offer(event.MoveFrom, time.Unix(1000, 0), true, "a.txt", "")
	s.Offer(event.Modify, time.Unix(1000, 0), true, "a.txt", "")

	// The modify must be dropped (move exemption), not merged.
	d, ok := s.delayname["a.txt"]
	require.True(t, ok)
	assert.Equal(t, event.MoveFrom, d.Kind)
	assert.Nil(t, d.Next)
}

func TestPopIfReady_RespectsMaxProcesses(t *testing.T) {
	s, fc := newTestSync(t, Config{MaxProcesses: 1})

	s.Offer(event.Modify, fc.now, true, "a.txt", "")
	s.Offer(event.Modify, fc.now, true, "b.txt", "")

	d1, ok := s.PopIfReady(fc.now)
	require.True(t, ok)
	s.RegisterChild(42, d1)

	_, ok = s.PopIfReady(fc.now)
	assert.False(t, ok, "a second delay must not pop while the only process slot is occupied")

	_, known := s.ReleaseChild(42)
	assert.True(t, known)

	d2, ok := s.PopIfReady(fc.now)
	require.True(t, ok, "releasing the slot must free the next delay to pop")
	assert.Equal(t, "b.txt", d2.Pathname)
}

func TestPopIfReady_WaitsForAlarm(t *testing.T) {
	s, _ := newTestSync(t, Config{Delay: 5})

	at := time.Unix(1000, 0)
	s.Offer(event.Modify, at, true, "a.txt", "")

	_, ok := s.PopIfReady(at)
	assert.False(t, ok, "delay must not fire before its alarm elapses")

	_, ok = s.PopIfReady(at.Add(4 * time.Second))
	assert.False(t, ok)

	d, ok := s.PopIfReady(at.Add(5 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "a.txt", d.Pathname)
}

func TestOffer_StackingPreservesOrderAndDelaynameHead(t *testing.T) {
	s, _ := newTestSync(t, Config{})
	s.Config.CollapseTable = event.Table{
		event.Modify: {event.Create: event.Stack},
	}

	s.Offer(event.Modify, time.Unix(1000, 0), true, "a.txt", "")
	s.Offer(event.Create, time.Unix(1000, 0), true, "a.txt", "")

	require.Equal(t, 2, s.PendingCount())
	head, ok := s.delayname["a.txt"]
	require.True(t, ok)
	assert.Equal(t, event.Modify, head.Kind, "delayname must index the oldest delay in a stack")
	require.NotNil(t, head.Next)
	assert.Equal(t, event.Create, head.Next.Kind)

	first, ok := s.PopIfReady(time.Unix(1000, 0))
	require.True(t, ok)
	assert.Equal(t, event.Modify, first.Kind)

	// After popping the head, delayname must be promoted to the stacked
	// successor rather than left dangling or cleared.
	promoted, ok := s.delayname["a.txt"]
	require.True(t, ok)
	assert.Equal(t, event.Create, promoted.Kind)
}
