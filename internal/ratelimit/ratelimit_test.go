package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiterWait(t *testing.T) {
	limiter := NewSimpleRateLimiter(20*time.Millisecond, 40*time.Millisecond)

	// First call establishes the baseline; the second must wait.
	require.NoError(t, limiter.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestSimpleRateLimiterContextCancel(t *testing.T) {
	limiter := NewSimpleRateLimiter(time.Hour, 2*time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimpleRateLimiterIgnoresOutcomes(t *testing.T) {
	limiter := NewSimpleRateLimiter(20*time.Millisecond, 40*time.Millisecond)

	for i := 0; i < 10; i++ {
		limiter.RecordError()
	}
	limiter.RecordSuccess()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 20*time.Millisecond, limiter.minDelay)
	assert.Equal(t, 40*time.Millisecond, limiter.maxDelay)
}

func TestAdaptiveRateLimiterBacksOff(t *testing.T) {
	limiter := NewAdaptiveRateLimiter(100*time.Millisecond, 200*time.Millisecond)

	for i := 0; i < 3; i++ {
		limiter.RecordError()
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 150*time.Millisecond, limiter.minDelay)
	assert.Equal(t, 300*time.Millisecond, limiter.maxDelay)
}
