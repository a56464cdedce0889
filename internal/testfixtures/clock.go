package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source. Check-in windows and token purges
// are computed against it, so tests move it by calendar days as often as by
// durations.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc adapts the clock to the func() time.Time dependency services take.
// A nil clock falls back to the wall clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// MoveTo jumps to t, which may lie in the past.
func (c *Clock) MoveTo(t time.Time) {
	c.step(func(time.Time) time.Time { return t })
}

func (c *Clock) Advance(d time.Duration) time.Time {
	return c.step(func(now time.Time) time.Time { return now.Add(d) })
}

// AdvanceDays steps whole calendar days, keeping the wall clock time.
// Negative values step back.
func (c *Clock) AdvanceDays(days int) time.Time {
	return c.step(func(now time.Time) time.Time { return now.AddDate(0, 0, days) })
}

func (c *Clock) step(next func(time.Time) time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = next(c.now)
	return c.now
}
