// Package resilience runs operations with a bounded number of attempts and a
// fixed delay between them, on top of retry-go.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrExhaustedRetries indicates retry attempts were exhausted.
var ErrExhaustedRetries = errors.New("retry attempts exhausted")

// RetryConfig holds configuration for WithRetry.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Delay is the fixed wait between attempts. There is no wait after the last attempt.
	Delay time.Duration
	// Retryable decides whether a failure gets another attempt. Nil retries every failure.
	Retryable func(error) bool
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
	// Timer replaces the wall clock wait between attempts.
	Timer retry.Timer
}

// WithRetry runs operation until it succeeds, returns a non-retryable error,
// the attempts are exhausted, or ctx is done. The attempt number passed to
// operation starts at 1.
//
// Exhaustion wraps ErrExhaustedRetries and the last error. A non-retryable
// error is returned as is. Cancellation wraps both ctx.Err() and the last error.
func WithRetry(ctx context.Context, operation func(ctx context.Context, attempt int) error, cfg RetryConfig) error {
	maxAttempts := max(cfg.MaxAttempts, 1)
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	var (
		attempt int
		lastErr error
	)

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.Delay(cfg.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			// retry-go also reports the final failed attempt.
			if cfg.OnRetry != nil && int(n)+1 < maxAttempts {
				cfg.OnRetry(int(n)+1, err)
			}
		}),
	}
	if cfg.Timer != nil {
		opts = append(opts, retry.WithTimer(cfg.Timer))
	}

	err := retry.Do(func() error {
		attempt++
		lastErr = operation(ctx, attempt)
		return lastErr
	}, opts...)
	if err == nil {
		return nil
	}
	if lastErr == nil {
		return err
	}

	switch {
	case attempt >= maxAttempts && retryable(lastErr):
		return fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, attempt, lastErr)
	case ctx.Err() != nil:
		return fmt.Errorf("retry abandoned after attempt %d: %w", attempt, errors.Join(ctx.Err(), lastErr))
	default:
		return lastErr
	}
}
