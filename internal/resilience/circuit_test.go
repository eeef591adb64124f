package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	b := NewBreaker(4, 0.5, time.Minute)
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	b.Report(ctx, false)
	b.Report(ctx, false)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)

	// 3 failures out of 4 exceeds the 0.5 ratio
	require.False(t, b.Allow(ctx))
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := NewBreaker(4, 0.5, time.Minute)
	ctx := context.Background()

	b.Report(ctx, true)
	b.Report(ctx, true)
	b.Report(ctx, true)
	b.Report(ctx, false)

	require.True(t, b.Allow(ctx))
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, 0.5, 20*time.Millisecond)
	ctx := context.Background()

	b.Report(ctx, false)
	require.False(t, b.Allow(ctx))

	time.Sleep(30 * time.Millisecond)

	// cool-off elapsed, a probe is allowed
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.True(t, b.Allow(ctx))
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	b := NewBreaker(1, 0.5, 20*time.Millisecond)
	ctx := context.Background()

	b.Report(ctx, false)
	time.Sleep(30 * time.Millisecond)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)

	require.False(t, b.Allow(ctx))
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, 100*time.Millisecond, Backoff(base, 1, 0))
	require.Equal(t, 200*time.Millisecond, Backoff(base, 2, 0))
	require.Equal(t, 400*time.Millisecond, Backoff(base, 3, 0))

	// jitter stays within the configured fraction
	for i := 0; i < 20; i++ {
		d := Backoff(base, 2, 0.2)
		require.GreaterOrEqual(t, d, 160*time.Millisecond)
		require.LessOrEqual(t, d, 240*time.Millisecond)
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "closed", Closed.String())
	require.Equal(t, "open", Open.String())
	require.Equal(t, "half_open", HalfOpen.String())
}
