package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/carbonclap/carbonclap/internal/service"
)

// ErrMaxRetries indicates that all retry attempts have been exhausted.
var ErrMaxRetries = errors.New("max retries exceeded")

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// WithRetry executes an operation with configurable retry behavior.
//
// The engine never retries internally; its operations are idempotent-safe,
// so callers that hit transient storage contention wrap the whole facade
// call in WithRetry instead.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}

	delay := opts.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		// Validation failures never succeed on retry.
		var retryableErr *RetryableError
		if errors.As(err, &retryableErr) && !retryableErr.Retryable {
			return err
		}
		if errors.Is(err, ErrNotFound) ||
			errors.Is(err, ErrInvalidAmount) ||
			errors.Is(err, ErrInvalidRange) ||
			errors.Is(err, ErrInvalidRule) ||
			errors.Is(err, ErrInvalidStatus) ||
			errors.Is(err, ErrInvalidMethod) {
			return err
		}

		if attempt == opts.MaxAttempts {
			break
		}

		slog.Debug("retrying operation",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * opts.Multiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return errors.Join(ErrMaxRetries, lastErr)
}
