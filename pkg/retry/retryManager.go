package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryManager re-runs an operation while its error is retryable, sleeping
// with exponential backoff and jitter between attempts.
type RetryManager struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	retryable  func(error) bool
}

// NewRetryManager retries errors matching any of targets (errors.Is).
func NewRetryManager(maxRetries int, baseDelay time.Duration, targets ...error) *RetryManager {
	return &RetryManager{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   baseDelay * 16,
		retryable: func(err error) bool {
			for _, target := range targets {
				if errors.Is(err, target) {
					return true
				}
			}
			return false
		},
	}
}

// Do calls fn once plus up to maxRetries more times. The last error is returned.
func (r *RetryManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		retry, delay := r.ShouldRetry(attempt, err)
		if !retry {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// ShouldRetry reports whether another attempt is allowed after the given
// zero-based attempt failed with err, and how long to wait first.
func (r *RetryManager) ShouldRetry(attempt int, err error) (bool, time.Duration) {
	if attempt >= r.maxRetries || !r.retryable(err) {
		return false, 0
	}
	return true, r.calculateBackoff(attempt)
}

// calculateBackoff: base * 2^attempt, ±25% jitter, capped at maxDelay.
func (r *RetryManager) calculateBackoff(attempt int) time.Duration {
	backoff := r.baseDelay << uint(attempt)
	if backoff <= 0 || backoff > r.maxDelay {
		backoff = r.maxDelay
	}

	if quarter := int64(backoff / 4); quarter > 0 {
		backoff += time.Duration(rand.Int63n(2*quarter+1) - quarter)
	}

	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}
	return backoff
}
