package types

import "time"

// Clock abstracts time.Now for deterministic testing of temporal logic
// (sweep selection, window resets, cache age).
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a Clock pinned to a settable instant, for tests.
type FixedClock struct {
	T time.Time
}

// Now returns the pinned instant.
func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the pinned instant forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
