//go:build linux

package watch

import (
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipengyu/lsyncd/internal/clock"
	"github.com/lipengyu/lsyncd/internal/event"
	"github.com/lipengyu/lsyncd/internal/mirror"
)

// newTestManager builds a Manager with no real inotify fd: routeBatch
// and routeMove only touch wdlist/clock/log/woke, so a zero-value
// kernel is never dereferenced by these tests.
func newTestManager(t *testing.T, clk *clock.Clock) *Manager {
	t.Helper()
	return &Manager{
		clock:  clk,
		log:    logrus.NewEntry(logrus.New()),
		wdlist: make(map[int32][]Binding),
		woke:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func TestRouteBatch_PairsMoveFromMoveToByCookie(t *testing.T) {
	fc := fakeclock.NewFakeClock(time.Unix(1000, 0))
	clk := clock.NewFrom(fc)
	m := newTestManager(t, clk)
	log := logrus.NewEntry(logrus.New())

	onMove := func(*mirror.Inlet) int { return 0 }
	s := mirror.New("/src", "/dst", mirror.Config{OnMove: onMove}, clk, log)
	m.wdlist[1] = []Binding{{Sync: s, Prefix: ""}}

	events := []RawEvent{
		{Wd: 1, Kind: event.MoveFrom, Filename: "old.txt", Cookie: 42},
		{Wd: 1, Kind: event.MoveTo, Filename: "new.txt", Cookie: 42},
	}
	m.routeBatch(events)

	delay, ok := s.PopIfReady(fc.Now())
	require.True(t, ok, "a paired rename with OnMove configured must produce one Move delay")
	assert.Equal(t, event.Move, delay.Kind)
	assert.Equal(t, "old.txt", delay.Pathname)
	assert.Equal(t, "new.txt", delay.Pathname2)
}

func TestRouteBatch_UnpairedMoveFromFallsThroughToRoute(t *testing.T) {
	fc := fakeclock.NewFakeClock(time.Unix(1000, 0))
	clk := clock.NewFrom(fc)
	m := newTestManager(t, clk)
	log := logrus.NewEntry(logrus.New())

	s := mirror.New("/src", "/dst", mirror.Config{Action: func(*mirror.Inlet) int { return 0 }}, clk, log)
	m.wdlist[1] = []Binding{{Sync: s, Prefix: ""}}

	// No matching MoveTo in the batch: must not panic, and the lone
	// MoveFrom still reaches the Sync via the pre-existing route path.
	events := []RawEvent{
		{Wd: 1, Kind: event.MoveFrom, Filename: "gone.txt", Cookie: 7},
	}
	m.routeBatch(events)

	assert.Equal(t, 1, s.PendingCount(), "an unpaired MoveFrom must still be offered, not silently dropped")
}

func TestRouteBatch_MoveWithoutOnMoveSplitsIntoDeleteAndCreate(t *testing.T) {
	fc := fakeclock.NewFakeClock(time.Unix(1000, 0))
	clk := clock.NewFrom(fc)
	m := newTestManager(t, clk)
	log := logrus.NewEntry(logrus.New())

	s := mirror.New("/src", "/dst", mirror.Config{Action: func(*mirror.Inlet) int { return 0 }}, clk, log)
	m.wdlist[1] = []Binding{{Sync: s, Prefix: ""}}

	events := []RawEvent{
		{Wd: 1, Kind: event.MoveFrom, Filename: "old.txt", Cookie: 9},
		{Wd: 1, Kind: event.MoveTo, Filename: "new.txt", Cookie: 9},
	}
	m.routeBatch(events)

	assert.Equal(t, 2, s.PendingCount(), "without OnMove configured, a paired rename must still split into Delete+Create")
}
