// Package clocktest provides a simulated clock.
package clocktest

import (
	"sync"
	"time"

	"github.com/dshills/coled/internal/clock"
)

var _ clock.Clock = (*Fake)(nil)

// Fake is a clock whose time only moves when Sleep, After or Advance is
// called. Sleep and After advance the clock by the requested duration and
// return immediately, so loops paced by the clock run at full speed.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFake returns a Fake set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the simulated time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances the simulated time by d.
func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	if d > 0 {
		f.now = f.now.Add(d)
	}
}

// After advances the simulated time by d and returns a channel that already
// holds the new time.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- f.Now()
	return ch
}

// Advance moves the simulated time forward by d without recording a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Sleeps returns every duration passed to Sleep or After, in call order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
