package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
)

func TestElapsed(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, 31.0, clock.Elapsed(now, now.Add(-31*time.Second)))
	assert.Equal(t, 0.0, clock.Elapsed(now, now))
	// 零值与未来时刻都视为尚未经过时间
	assert.Equal(t, 0.0, clock.Elapsed(now, time.Time{}))
	assert.Equal(t, 0.0, clock.Elapsed(now, now.Add(time.Minute)))
}

func TestIsWeekend(t *testing.T) {
	// 2025-03-10是周一，2025-03-15是周六
	assert.False(t, clock.IsWeekend(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))
	assert.True(t, clock.IsWeekend(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)))
}

func TestFrozenClock(t *testing.T) {
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	c := clock.NewFrozen(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
	assert.Equal(t, "08:01:30", c.String())
}
