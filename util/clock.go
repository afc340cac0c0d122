package util

import "time"

// Clock abstracts the monotonic time source of the tick loop so that
// scheduling and interval logic can be tested deterministically.
// Production code uses RealClock; tests use a SteppedClock.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock is backed by the time package. The zero value is usable.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// SteppedClock is a manually advanced clock for tests. It is not safe
// for concurrent use - the tick loop is single-threaded and so are the
// tests driving it.
type SteppedClock struct {
	now time.Time
}

// NewSteppedClock creates a SteppedClock starting at start.
func NewSteppedClock(start time.Time) *SteppedClock {
	return &SteppedClock{now: start}
}

func (c *SteppedClock) Now() time.Time { return c.now }

func (c *SteppedClock) Since(t time.Time) time.Duration { return c.now.Sub(t) }

// Step advances the clock by d.
func (c *SteppedClock) Step(d time.Duration) { c.now = c.now.Add(d) }

// SetTime moves the clock to an absolute point in time.
func (c *SteppedClock) SetTime(t time.Time) { c.now = t }
