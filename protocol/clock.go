package protocol

import (
	"sync"
	"time"
)

// Clock supplies wall-clock time. Operations read it once.
type Clock interface {
	Now() time.Time
}

// RealClock is the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// FixedClock returns a settable instant. Safe for concurrent use.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at unix seconds sec.
func NewFixedClock(sec int64) *FixedClock {
	return &FixedClock{t: time.Unix(sec, 0).UTC()}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to unix seconds sec.
func (c *FixedClock) Set(sec int64) {
	c.mu.Lock()
	c.t = time.Unix(sec, 0).UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
