// Package clock abstracts the passage of time so that pacing logic can be
// driven by a simulated clock in tests.
package clock

import (
	"time"
)

// Clock is an interface that abstracts the functionality for measuring and waiting on time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the current goroutine for at least the duration d. A negative or zero duration causes Sleep to return immediately.
	Sleep(d time.Duration)

	// After waits for the duration to elapse and then sends the current time on the returned channel.
	After(d time.Duration) <-chan time.Time
}

type clock struct{}

// New creates a new instance of Clock backed by the time package.
func New() Clock {
	return clock{}
}

func (clock) Now() time.Time {
	return time.Now()
}

func (clock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (clock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
