// pkg/retry/retry.go - functions for retrying actions with exponential backoff.

package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
)

// NonRetryable wraps an error that should fail immediately instead of
// being retried.
type NonRetryable struct {
	Err error
}

func (e NonRetryable) Error() string { return e.Err.Error() }
func (e NonRetryable) Unwrap() error { return e.Err }

// Config defines the configuration for retry attempts.
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

// Retry retries a given function with exponential backoff.
func Retry(cfg Config, action func() error) error {
	interval := cfg.InitialInterval

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = action()
		if lastErr == nil {
			return nil
		}

		var nonRetryable NonRetryable
		if errors.As(lastErr, &nonRetryable) {
			logging.Warn("Non-retryable error encountered", "error", lastErr)
			return lastErr
		}

		if attempt < cfg.MaxAttempts {
			logging.Warn("Attempt failed, retrying",
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"retry_delay", interval.String(),
				"error", lastErr)
			time.Sleep(interval)
			interval = time.Duration(float64(interval) * cfg.Multiplier)
		}
	}

	return fmt.Errorf("action failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
