package azure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kjourdan1/azaudit/internal/remediate"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (default: DefaultMaxRetryAttempts)
	BaseDelay   time.Duration // Initial delay between retries (default: DefaultRetryBaseDelay)
	MaxDelay    time.Duration // Maximum delay cap (default: DefaultRetryMaxDelay)
	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsRetryable.
	Retryable func(error) bool
}

const (
	DefaultMaxRetryAttempts = 3
	DefaultRetryBaseDelay   = 1 * time.Second
	DefaultRetryMaxDelay    = 30 * time.Second
)

// DefaultRetryConfig returns sensible defaults for inventory calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxRetryAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
		MaxDelay:    DefaultRetryMaxDelay,
		Retryable:   IsRetryable,
	}
}

// IsRetryable reports whether err may succeed on a later attempt. Auth and
// not-found failures are permanent; so is a cancelled or expired context.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, remediate.ErrAuth), errors.Is(err, remediate.ErrNotFound):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Retry executes fn with exponential backoff and jitter until it succeeds,
// returns a non-retryable error, runs out of attempts or ctx is done.
// Only read-side enumeration goes through Retry; tag writes are never retried.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxRetryAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryMaxDelay
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsRetryable
	}

	var lastErr error
	var zero T
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !cfg.Retryable(err) {
			return zero, err
		}

		if attempt < cfg.MaxAttempts-1 {
			timer := time.NewTimer(backoffDelay(attempt, cfg.BaseDelay, cfg.MaxDelay))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			}
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// backoffDelay computes delay with exponential backoff and jitter.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > max {
		delay = max
	}
	// half fixed, half jitter
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1)) //nolint:gosec // jitter doesn't need crypto/rand
	return delay/2 + jitter
}
