// Package ratelimit paces page visits against the target site. The
// pipeline visits pages sequentially; the limiter enforces the jittered
// inter-product delay between visits.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter paces actions and hears about their outcomes, so
// implementations can adjust the delay window to how the site responds.
type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
	RecordSuccess()
	RecordError()
}

var (
	_ RateLimiter = (*SimpleRateLimiter)(nil)
	_ RateLimiter = (*AdaptiveRateLimiter)(nil)
)

// SimpleRateLimiter waits a random duration in [minDelay, maxDelay)
// since the last action. Jitter keeps the visit cadence from looking
// mechanical.
type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.calculateDelay()

	if elapsed < delay {
		waitTime := delay - elapsed

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	r.maxDelay = max
}

// The fixed window ignores outcomes.
func (r *SimpleRateLimiter) RecordSuccess() {}

func (r *SimpleRateLimiter) RecordError() {}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if !r.jitter || r.minDelay >= r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(rand.Int63n(int64(delta)))
	return r.minDelay + jitter
}

// AdaptiveRateLimiter widens the delay window after repeated errors and
// slowly tightens it again after sustained success.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

func NewAdaptiveRateLimiter(minDelay, maxDelay time.Duration) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: NewSimpleRateLimiter(minDelay, maxDelay),
		maxErrorCount:     3,
		backoffFactor:     1.5,
	}
}

func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < 100*time.Millisecond {
			newMin = 100 * time.Millisecond
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > 30*time.Second {
			newMin = 30 * time.Second
		}
		if newMax > 60*time.Second {
			newMax = 60 * time.Second
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}
