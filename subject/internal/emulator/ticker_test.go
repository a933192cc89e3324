package emulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleClock_DropsWhenConsumerStalls(t *testing.T) {
	clock := NewSampleClock(time.Millisecond, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())

	ticks := clock.Start(ctx)
	<-ticks

	// потребитель не читает, буфер на один такт
	require.Eventually(t, func() bool { return clock.Dropped() > 0 }, time.Second, time.Millisecond)

	cancel()
	for range ticks {
	}
}

func TestSampleClock_JitterBounded(t *testing.T) {
	clock := NewSampleClock(time.Millisecond, 5*time.Millisecond, 7)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		at := clock.stamp(base)
		assert.LessOrEqual(t, at.Sub(base).Abs(), 5*time.Millisecond)
	}
}
