package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), 3, time.Millisecond, time.Millisecond, func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errors.New("timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("page crashed")
	calls := 0
	err := retryWithBackoff(context.Background(), 3, time.Millisecond, time.Millisecond, func(attempt int) error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryWithBackoff(ctx, 5, time.Hour, time.Millisecond, func(attempt int) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), 0, time.Millisecond, time.Millisecond, func(attempt int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
