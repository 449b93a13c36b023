package engine

import (
	"time"
)

// Clock is the engine's only view of time: current seconds and the ability to
// run a callback after a delay. Everything else (look-ahead, cancellation,
// swing math) is built on top of these two primitives, so tests can substitute
// a fake clock and step it by hand.
type Clock interface {
	// Now returns monotonic time in seconds.
	Now() float64
	// AfterFunc schedules fn after delay and returns a cancel function.
	// Cancel is a no-op once fn has started.
	AfterFunc(delay time.Duration, fn func()) (cancel func())
}

// WallClock is the production Clock backed by the Go runtime timer.
type WallClock struct {
	start time.Time
}

// NewWallClock returns a Clock whose Now starts near zero at creation.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

func (c *WallClock) AfterFunc(delay time.Duration, fn func()) (cancel func()) {
	if delay < 0 {
		delay = 0
	}
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}
