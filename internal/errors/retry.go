package errors

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// DetailRetryAfter is the Details key carrying an upstream Retry-After
// hint, in seconds.
const DetailRetryAfter = "retry_after"

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (not including initial attempt).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each retry.
	Multiplier float64

	// Jitter adds randomness to delay to prevent thundering herd.
	Jitter bool
}

// DefaultRetryConfig returns sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

// UpstreamRetryConfig returns the retry configuration used for calls to
// upstream sources (npm registry, storybook sites): 4 retries after the
// initial attempt, starting at 200ms and doubling.
func UpstreamRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   4,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// retryAfterHint extracts an upstream Retry-After hint from a DexError,
// if present. Returns zero when there is no usable hint.
func retryAfterHint(err error) time.Duration {
	de, ok := err.(*DexError)
	if !ok || de.Details == nil {
		return 0
	}
	secs, err2 := strconv.Atoi(de.Details[DetailRetryAfter])
	if err2 != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// shouldStop reports whether retrying is pointless for this error.
// A DexError explicitly marked non-retryable (e.g. a 404) stops
// immediately; unknown error types keep retrying.
func shouldStop(err error) bool {
	if de, ok := err.(*DexError); ok {
		return !de.Retryable
	}
	return false
}

// Retry executes a function with exponential backoff retry logic.
// It retries up to MaxRetries times if the function returns an error.
// The delay between retries grows exponentially, capped at MaxDelay.
// A DexError marked non-retryable stops immediately; a Retry-After
// hint on the error stretches the wait when it exceeds the backoff.
// If the context is cancelled, it returns the context error immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes a function that returns a value with retry logic.
// Similar to Retry but for functions that return both a result and an error.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		// Execute the function
		var err error
		result, err = fn()
		if err != nil {
			lastErr = err

			// Definitive failures (not found, validation) don't retry.
			if shouldStop(err) {
				var zero T
				return zero, err
			}

			// If this was the last attempt, don't wait
			if attempt >= cfg.MaxRetries {
				break
			}

			// Calculate delay with optional jitter
			waitDelay := delay
			if cfg.Jitter {
				// Add jitter: delay * (0.5 + rand(0, 0.5))
				jitterFactor := 0.5 + rand.Float64()*0.5
				waitDelay = time.Duration(float64(delay) * jitterFactor)
			}

			// Honor upstream Retry-After when it is longer than the backoff.
			if hint := retryAfterHint(err); hint > waitDelay {
				waitDelay = hint
			}

			// Wait before retrying (with context cancellation support)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(waitDelay):
			}

			// Calculate next delay with exponential backoff
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			continue
		}

		// Success
		return result, nil
	}

	// Return zero value and error
	var zero T
	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
