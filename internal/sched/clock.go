package sched

import "time"

// Clock provides the real-time base all scheduling decisions are made
// against, in seconds. Implementations must be monotonic.
type Clock interface {
	Now() float64
}

// MonotonicClock is the production clock, anchored at its creation time.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock creates a clock whose zero point is now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Now returns seconds elapsed since the clock was created.
func (c *MonotonicClock) Now() float64 {
	return time.Since(c.start).Seconds()
}
