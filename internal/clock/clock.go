// Package clock abstracts wall-clock time so that time-driven logic
// (breaker open-timeouts, retry backoff, cache TTLs) can be tested
// deterministically without sleeping.
package clock

import "time"

// Clock provides the current time and timer channels.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the elapsed time since t.
	Since(t time.Time) time.Duration

	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// real delegates to the time package.
type real struct{}

// New returns a Clock backed by the system clock.
func New() Clock {
	return real{}
}

func (real) Now() time.Time {
	return time.Now()
}

func (real) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
