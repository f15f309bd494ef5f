package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carbonclap/carbonclap/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return nil
		}, fastRetry(3))
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		}, fastRetry(5))
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := WithRetry(ctx, func() error {
			calls++
			return boom
		}, fastRetry(3))
		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls)
	})

	t.Run("validation errors are not retried", func(t *testing.T) {
		sentinels := []error{
			ErrNotFound,
			ErrInvalidAmount,
			ErrInvalidRange,
			ErrInvalidRule,
			ErrInvalidStatus,
			ErrInvalidMethod,
		}
		for _, sentinel := range sentinels {
			calls := 0
			err := WithRetry(ctx, func() error {
				calls++
				return sentinel
			}, fastRetry(3))
			assert.ErrorIs(t, err, sentinel)
			assert.Equal(t, 1, calls, "sentinel %v should fail fast", sentinel)
		}
	})

	t.Run("explicitly non-retryable error fails fast", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, func() error {
			calls++
			return &RetryableError{Err: errors.New("permanent"), Retryable: false}
		}, fastRetry(3))
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := WithRetry(cancelled, func() error {
			return errors.New("transient")
		}, fastRetry(3))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
