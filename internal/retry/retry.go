// Package retry provides retry logic with exponential backoff for transient
// source-client failures.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultConfig returns sensible default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// WithRetry executes a function with exponential backoff. retryable decides
// whether an error is transient; source-client reads are idempotent so
// retrying is always safe, but permanent failures (not found, malformed)
// should fail immediately.
func WithRetry(ctx context.Context, cfg Config, operation string, retryable func(error) bool, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				slog.Info("Operation succeeded after retry",
					"operation", operation,
					"attempt", attempt+1,
				)
			}
			return nil
		}

		lastErr = err

		if !retryable(err) {
			return err
		}

		if attempt >= cfg.MaxRetries {
			slog.Warn("Max retries exceeded",
				"operation", operation,
				"attempts", attempt+1,
				"error", err,
			)
			return err
		}

		backoff := calculateBackoff(cfg, attempt)

		slog.Warn("Operation failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}

// calculateBackoff calculates the backoff duration with jitter.
func calculateBackoff(cfg Config, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt))

	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	// Jitter of ±25% spreads retries from concurrent callers.
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	return time.Duration(backoff)
}
