// Package usage tracks generator calls against a daily budget. The counter
// is monotonic for the process lifetime; resets happen by restarting, not by
// clock logic.
package usage

import "sync"

// Counter is a thread-safe monotonically increasing call counter with a hard
// limit. Concurrent increments never lose updates.
type Counter struct {
	mu    sync.Mutex
	count int64
	limit int64
}

// NewCounter creates a Counter capped at limit calls. A non-positive limit
// disables the budget check.
func NewCounter(limit int64) *Counter {
	return &Counter{limit: limit}
}

// Increment records one call and returns the new total.
func (c *Counter) Increment() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count
}

// Current returns the running total.
func (c *Counter) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Limit returns the configured budget.
func (c *Counter) Limit() int64 {
	return c.limit
}

// Remaining returns how many calls the budget still allows, never negative
// once a budget exists. A disabled budget reports -1, matching Allow's
// always-true answer rather than claiming exhaustion.
func (c *Counter) Remaining() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit <= 0 {
		return -1
	}
	remaining := c.limit - c.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Allow reports whether another call fits within the budget.
func (c *Counter) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit <= 0 || c.count < c.limit
}
