// Package clock wraps a monotonic clock behind the four primitives the
// event engine needs: now, add, before_or_equal and earlier. Timestamps
// are opaque to callers outside this package.
package clock

import (
	"time"

	cfclock "code.cloudfoundry.org/clock"
)

// Time is an opaque monotonic timestamp. Only the operations below are
// defined on it.
type Time = time.Time

// Clock is the source of "now" and alarm arithmetic for the engine. It is
// a thin wrapper around code.cloudfoundry.org/clock so that tests can
// substitute a fake clock without the engine depending on wall-clock time.
type Clock struct {
	inner cfclock.Clock
}

// New returns a Clock backed by the real system clock.
func New() *Clock {
	return &Clock{inner: cfclock.NewClock()}
}

// NewFrom wraps an existing code.cloudfoundry.org/clock.Clock, e.g. a
// clock/clockfakes.FakeClock or clock/fakeclock.FakeClock in tests.
func NewFrom(c cfclock.Clock) *Clock {
	return &Clock{inner: c}
}

// Now returns the current monotonic timestamp.
func (c *Clock) Now() Time {
	return c.inner.Now()
}

// Add returns t advanced by the given number of seconds. Fractional
// seconds are honored since lsyncd-style delay configuration is commonly
// sub-second (e.g. 0.2).
func (c *Clock) Add(t Time, seconds float64) Time {
	return t.Add(time.Duration(seconds * float64(time.Second)))
}

// BeforeOrEqual reports whether a happened no later than b.
func (c *Clock) BeforeOrEqual(a, b Time) bool {
	return a.Before(b) || a.Equal(b)
}

// Earlier returns whichever of a, b is not after the other.
func (c *Clock) Earlier(a, b Time) Time {
	if b.Before(a) {
		return b
	}
	return a
}
