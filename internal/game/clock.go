package game

import (
	"sync"
	"time"
)

// Clock produces the elapsed seconds for one tick.
type Clock interface {
	Delta() float64
}

// RealClock measures wall time between calls, clamped to Max.
type RealClock struct {
	Max  float64
	now  func() time.Time
	last time.Time
}

// NewRealClock creates a wall clock. The first Delta returns 0.
func NewRealClock(max float64) *RealClock {
	return &RealClock{Max: max, now: time.Now}
}

func (c *RealClock) Delta() float64 {
	t := c.now()
	if c.last.IsZero() {
		c.last = t
		return 0
	}
	dt := t.Sub(c.last).Seconds()
	c.last = t
	if dt < 0 {
		return 0
	}
	if c.Max > 0 && dt > c.Max {
		return c.Max
	}
	return dt
}

// FixedClock returns the same step every tick.
type FixedClock struct {
	Step float64
}

func (c FixedClock) Delta() float64 { return c.Step }

// ManualClock returns whatever was last Set. Safe for use from tests that
// drive an engine goroutine.
type ManualClock struct {
	mu   sync.Mutex
	step float64
}

// Set changes the value returned by following Delta calls.
func (c *ManualClock) Set(dt float64) {
	c.mu.Lock()
	c.step = dt
	c.mu.Unlock()
}

func (c *ManualClock) Delta() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}
