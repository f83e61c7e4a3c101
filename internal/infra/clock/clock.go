// Package clock provides the engine's wall-time capability.
//
// The adaptation engine measures frame execution times by differencing two
// timestamps taken around application code. Everything downstream (binning,
// objective checks, gradient control) works in float seconds, so the clock
// exposes exactly two operations: take a timestamp, and difference two
// timestamps into seconds with microsecond precision.
//
// The clock is injectable so that every timing-sensitive test can drive the
// engine with a scripted virtual clock instead of sleeping.
package clock

import "time"

// Clock yields monotonic timestamps. The zero value is not usable; construct
// with New or Virtual.
type Clock struct {
	// Now is the timestamp source. Defaults to time.Now, which carries a
	// monotonic reading on all supported platforms.
	Now func() time.Time
}

// New returns a clock backed by the system monotonic clock.
func New() *Clock {
	return &Clock{Now: time.Now}
}

// Elapsed returns end-start in seconds, truncated to microsecond precision.
// A negative difference is clamped to zero.
func (c *Clock) Elapsed(start, end time.Time) float64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return float64(d.Microseconds()) / 1e6
}

// Virtual returns a clock whose reading advances only when step is called.
// The returned step function advances the clock by d and is safe to call
// between engine operations.
func Virtual(start time.Time) (*Clock, func(d time.Duration)) {
	now := start
	c := &Clock{Now: func() time.Time { return now }}
	return c, func(d time.Duration) { now = now.Add(d) }
}
