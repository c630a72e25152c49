package clocktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	assert.Equal(t, start, f.Now())

	f.Sleep(3 * time.Second)
	assert.Equal(t, start.Add(3*time.Second), f.Now())

	got := <-f.After(2 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), got)

	f.Advance(time.Second)
	assert.Equal(t, start.Add(6*time.Second), f.Now())
	assert.Equal(t, []time.Duration{3 * time.Second, 2 * time.Second}, f.Sleeps())

	f.Sleep(-time.Second)
	assert.Equal(t, start.Add(6*time.Second), f.Now())
}
