package transport

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/coled/internal/clock"
)

// DefaultReconnectInterval is the minimum spacing between connect attempts.
const DefaultReconnectInterval = 25 * time.Second

// Policy decides when the next connect attempt may happen. Successive
// attempts are never closer together than the interval.
type Policy struct {
	clock clock.Clock

	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	tried    bool
}

// NewPolicy creates a policy. A non-positive interval selects the default.
func NewPolicy(c clock.Clock, interval time.Duration) *Policy {
	if c == nil {
		c = clock.New()
	}
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	return &Policy{clock: c, interval: interval}
}

// Interval returns the current spacing.
func (p *Policy) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval changes the spacing for future decisions. Non-positive values
// are ignored.
func (p *Policy) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
}

// Remaining returns how long until an attempt is allowed; zero means now.
func (p *Policy) Remaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.tried {
		return 0
	}
	wait := p.last.Add(p.interval).Sub(p.clock.Now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Ready reports whether an attempt is allowed now.
func (p *Policy) Ready() bool {
	return p.Remaining() == 0
}

// Attempted records an attempt at the current time.
func (p *Policy) Attempted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = p.clock.Now()
	p.tried = true
}

// Wait blocks until an attempt is allowed or ctx is done.
func (p *Policy) Wait(ctx context.Context) error {
	for {
		wait := p.Remaining()
		if wait == 0 {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(wait):
		}
	}
}
