package tick

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

// Source increments the tick counter once per period and posts a wake-up to any waiting scheduler. Posts are
// coalesced, a scheduler that falls behind observes one wake-up and reads the current counter.
type Source struct {
	period  time.Duration
	counter atomic.Uint32
	wake    chan struct{}
}

func NewSource(period time.Duration, start Tick) *Source {
	s := &Source{
		period: period,
		wake:   make(chan struct{}, 1),
	}

	s.counter.Store(uint32(start))

	return s
}

func (s *Source) Now() Tick {
	return Tick(s.counter.Load())
}

func (s *Source) Period() time.Duration {
	return s.period
}

// C returns the wake-up channel.
func (s *Source) C() <-chan struct{} {
	return s.wake
}

// Advance moves the counter forward by n ticks and posts a wake-up.
func (s *Source) Advance(n uint32) Tick {
	now := Tick(s.counter.Add(n))
	s.Post()
	return now
}

// Post wakes the scheduler without advancing the counter.
func (s *Source) Post() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run advances the counter every period until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Advance(1)
		}
	}
}

// Ticks converts a duration to a number of whole ticks, rounding up so a non-zero duration is at least one tick.
func (s *Source) Ticks(d time.Duration) uint32 {
	return DurationToTicks(d, s.period)
}

// DurationToTicks rounds up, saturating at the largest uint32 rather than wrapping.
func DurationToTicks(d time.Duration, period time.Duration) uint32 {
	if d <= 0 || period <= 0 {
		return 0
	}

	ticks := uint64(d / period)
	if d%period != 0 {
		ticks++
	}

	if ticks > math.MaxUint32 {
		return math.MaxUint32
	}

	return uint32(ticks)
}
