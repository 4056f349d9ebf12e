package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func TestDoRetriesUntilSuccess(t *testing.T) {
	rm := NewRetryManager(3, time.Millisecond, errFlaky)

	calls := 0
	err := rm.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	rm := NewRetryManager(2, time.Millisecond, errFlaky)

	calls := 0
	err := rm.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryOtherErrors(t *testing.T) {
	rm := NewRetryManager(5, time.Millisecond, errFlaky)
	permanent := errors.New("permanent")

	calls := 0
	err := rm.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	rm := NewRetryManager(5, time.Hour, errFlaky)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := rm.Do(ctx, func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

// TestCalculateBackoff проверяет экспоненциальный рост и ограничение задержки
func TestCalculateBackoff(t *testing.T) {
	rm := NewRetryManager(10, 100*time.Millisecond, errFlaky)

	for attempt := 0; attempt < 10; attempt++ {
		d := rm.calculateBackoff(attempt)
		assert.LessOrEqual(t, d, 1600*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}

	d := rm.calculateBackoff(1)
	assert.GreaterOrEqual(t, d, 150*time.Millisecond)
	assert.LessOrEqual(t, d, 250*time.Millisecond)
}
