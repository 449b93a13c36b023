package engine

import (
	"sort"
	"sync"
	"time"
)

// fakeClock is a hand-stepped Clock so transport behavior is deterministic
// and tests run instantly.
type fakeClock struct {
	mu     sync.Mutex
	now    float64
	timers []*fakeTimer
}

type fakeTimer struct {
	at        float64
	fn        func()
	cancelled bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{}
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(delay time.Duration, fn func()) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := delay.Seconds()
	if d < 0 {
		d = 0
	}
	t := &fakeTimer{at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return func() {
		c.mu.Lock()
		t.cancelled = true
		c.mu.Unlock()
	}
}

// Advance moves time forward, running every due timer in order. Timer
// callbacks may arm new timers; those run too if they fall inside the window.
func (c *fakeClock) Advance(dt float64) {
	c.mu.Lock()
	target := c.now + dt
	for {
		t := c.popDueLocked(target)
		if t == nil {
			break
		}
		if t.at > c.now {
			c.now = t.at
		}
		c.mu.Unlock()
		t.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func (c *fakeClock) popDueLocked(target float64) *fakeTimer {
	sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at < c.timers[j].at })
	for i, t := range c.timers {
		if t.cancelled {
			continue
		}
		if t.at <= target {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return t
		}
		break
	}
	return nil
}
