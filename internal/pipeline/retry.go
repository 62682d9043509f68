package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const (
	retryBackoffBase   = 400 * time.Millisecond
	retryBackoffJitter = 200 * time.Millisecond
)

// Retry runs fn up to maxAttempts times. Between attempts it sleeps a
// linearly growing backoff with jitter, honoring context cancellation.
// attempt is 1-based so fn can distinguish the first try from retries.
func Retry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	return retryWithBackoff(ctx, maxAttempts, retryBackoffBase, retryBackoffJitter, fn)
}

func retryWithBackoff(ctx context.Context, maxAttempts int, base, jitter time.Duration, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := base*time.Duration(attempt-1) + time.Duration(rand.Int63n(int64(jitter)+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
