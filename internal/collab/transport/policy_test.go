package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coled/internal/clock/clocktest"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPolicyFirstAttemptIsImmediate(t *testing.T) {
	p := NewPolicy(clocktest.NewFake(epoch), 0)
	assert.Equal(t, DefaultReconnectInterval, p.Interval())
	assert.True(t, p.Ready())
	assert.Zero(t, p.Remaining())
}

func TestPolicySpacing(t *testing.T) {
	clk := clocktest.NewFake(epoch)
	p := NewPolicy(clk, 10*time.Second)

	p.Attempted()
	assert.False(t, p.Ready())
	assert.Equal(t, 10*time.Second, p.Remaining())

	clk.Advance(9 * time.Second)
	assert.False(t, p.Ready())
	assert.Equal(t, time.Second, p.Remaining())

	clk.Advance(time.Second)
	assert.True(t, p.Ready())
}

func TestPolicyWait(t *testing.T) {
	clk := clocktest.NewFake(epoch)
	p := NewPolicy(clk, 25*time.Second)
	p.Attempted()
	clk.Advance(5 * time.Second)

	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, epoch.Add(25*time.Second), clk.Now())
	assert.Equal(t, []time.Duration{20 * time.Second}, clk.Sleeps())
}

func TestPolicyWaitCancelled(t *testing.T) {
	p := NewPolicy(clocktest.NewFake(epoch), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPolicySetInterval(t *testing.T) {
	clk := clocktest.NewFake(epoch)
	p := NewPolicy(clk, 25*time.Second)
	p.Attempted()

	p.SetInterval(2 * time.Second)
	p.SetInterval(-1)
	assert.Equal(t, 2*time.Second, p.Interval())
	clk.Advance(2 * time.Second)
	assert.True(t, p.Ready())
}
