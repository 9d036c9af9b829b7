package tick

import (
	"context"
	"github.com/stretchr/testify/assert"
	"math"
	"testing"
	"time"
)

func TestExpired(t *testing.T) {
	t.Run("a target equal to now has expired", func(t *testing.T) {
		assert.True(t, Expired(100, 100))
	})

	t.Run("a target in the past has expired", func(t *testing.T) {
		assert.True(t, Expired(100, 99))
		assert.True(t, Expired(100, 0))
	})

	t.Run("a target in the future has not expired", func(t *testing.T) {
		assert.False(t, Expired(100, 101))
		assert.False(t, Expired(0, 1000))
	})

	t.Run("a target that has wrapped past zero is in the future of a now near the top of the range", func(t *testing.T) {
		now := Tick(0xFFFFFFF0)
		target := Add(now, 0x20)

		assert.Equal(t, Tick(0x10), target)
		assert.False(t, Expired(now, target))
	})

	t.Run("expiry straddling the wrap matches unwrapped arithmetic", func(t *testing.T) {
		start := uint64(0xFFFFFFF0)
		target := start + 0x20

		for unwrapped := start; unwrapped < start+0x40; unwrapped++ {
			expected := unwrapped >= target
			assert.Equal(t, expected, Expired(Tick(uint32(unwrapped)), Tick(uint32(target))), "unwrapped now %x", unwrapped)
		}
	})

	t.Run("a target near the top of the range has expired for a now that has wrapped past zero", func(t *testing.T) {
		assert.True(t, Expired(0x05, 0xFFFFFFF0))
	})

	t.Run("targets in the upper quarter relative to now are treated as the future", func(t *testing.T) {
		now := Tick(0x10000000)

		assert.False(t, Expired(now, now+0x3FFFFFFF))
		assert.True(t, Expired(now, now-0xBFFFFFFF))
	})

	t.Run("a target the maximum interval ahead is still in the future", func(t *testing.T) {
		for _, now := range []Tick{0, 0x10000000, 0xFFFFFFF0} {
			assert.False(t, Expired(now, Add(now, MaxInterval)))
			assert.True(t, Expired(Add(now, MaxInterval), Add(now, MaxInterval)))
		}
	})
}

func TestSince(t *testing.T) {
	t.Run("elapsed ticks are counted across the wrap", func(t *testing.T) {
		assert.Equal(t, uint32(0x20), Since(0x10, 0xFFFFFFF0))
		assert.Equal(t, uint32(5), Since(10, 5))
	})
}

func TestSource(t *testing.T) {
	t.Run("advance increments the counter and posts a wake-up", func(t *testing.T) {
		s := NewSource(time.Second, 0xFFFFFFFF)

		now := s.Advance(1)
		assert.Equal(t, Tick(0), now)
		assert.Equal(t, Tick(0), s.Now())

		select {
		case <-s.C():
		default:
			t.Fatal("expected wake-up to be posted")
		}
	})

	t.Run("wake-ups are coalesced", func(t *testing.T) {
		s := NewSource(time.Second, 0)

		s.Advance(1)
		s.Advance(1)
		s.Advance(1)

		<-s.C()

		select {
		case <-s.C():
			t.Fatal("expected only a single pending wake-up")
		default:
		}

		assert.Equal(t, Tick(3), s.Now())
	})

	t.Run("run advances the counter until the context is cancelled", func(t *testing.T) {
		s := NewSource(time.Millisecond, 0)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error)
		go func() {
			done <- s.Run(ctx)
		}()

		assert.Eventually(t, func() bool {
			return s.Now() > 3
		}, time.Second, time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("durations convert to whole ticks rounding up", func(t *testing.T) {
		assert.Equal(t, uint32(0), DurationToTicks(0, 100*time.Millisecond))
		assert.Equal(t, uint32(1), DurationToTicks(time.Millisecond, 100*time.Millisecond))
		assert.Equal(t, uint32(10), DurationToTicks(time.Second, 100*time.Millisecond))
		assert.Equal(t, uint32(11), DurationToTicks(1001*time.Millisecond, 100*time.Millisecond))
	})

	t.Run("durations beyond the range saturate instead of wrapping", func(t *testing.T) {
		twentyYears := 20 * 365 * 24 * time.Hour

		assert.Equal(t, uint32(math.MaxUint32), DurationToTicks(twentyYears, 100*time.Millisecond))
		assert.Equal(t, uint32(math.MaxUint32), DurationToTicks(time.Duration(math.MaxInt64), time.Millisecond))
		assert.Equal(t, uint32(1296000000), DurationToTicks(1500*24*time.Hour, 100*time.Millisecond))
	})
}
