package emulator

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"
)

// SampleClock задает такт выборки датчика. Медленный потребитель не
// накапливает очередь: лишние такты отбрасываются и считаются.
type SampleClock struct {
	period  time.Duration
	jitter  time.Duration
	rng     *rand.Rand
	dropped atomic.Int64
}

func NewSampleClock(period, jitter time.Duration, seed int64) *SampleClock {
	return &SampleClock{
		period: period,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Start первый такт приходит сразу; канал закрывается после отмены ctx
func (c *SampleClock) Start(ctx context.Context) <-chan time.Time {
	ticks := make(chan time.Time, 1)

	go func() {
		defer close(ticks)

		ticks <- time.Now()

		ticker := time.NewTicker(c.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case at := <-ticker.C:
				select {
				case ticks <- c.stamp(at):
				default:
					c.dropped.Add(1)
				}
			}
		}
	}()

	return ticks
}

// stamp метка такта с отклонением реального датчика
func (c *SampleClock) stamp(at time.Time) time.Time {
	if c.jitter <= 0 {
		return at
	}
	return at.Add(time.Duration(float64(c.jitter) * (c.rng.Float64()*2 - 1)))
}

// Dropped число тактов, пропущенных из-за медленной отправки
func (c *SampleClock) Dropped() int64 {
	return c.dropped.Load()
}
