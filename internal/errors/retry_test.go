package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return New(ErrCodeNetworkTimeout, "timeout", nil)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return New(ErrCodeNetworkUnavailable, "unavailable", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
	assert.ErrorIs(t, err, New(ErrCodeNetworkUnavailable, "", nil))
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	// A 404 is definitive: the registry said so, asking again won't help.
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		return New(ErrCodeSourceNotFound, "package not found", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ErrCodeSourceNotFound, GetCode(err))
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	cfg := RetryConfig{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		calls++
		return New(ErrCodeNetworkTimeout, "timeout", nil)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetry_HonorsRetryAfterHint(t *testing.T) {
	calls := 0
	start := time.Now()

	rateLimited := New(ErrCodeRateLimited, "429 too many requests", nil).
		WithDetail(DetailRetryAfter, "1")

	cfg := RetryConfig{
		MaxRetries:   1,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}

	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return rateLimited
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 1*time.Second)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(3), func() (string, error) {
		calls++
		if calls < 2 {
			return "", New(ErrCodeUpstreamError, "502 bad gateway", nil)
		}
		return "metadata", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "metadata", result)
	assert.Equal(t, 2, calls)
}

func TestRetryWithResult_ZeroValueOnFailure(t *testing.T) {
	result, err := RetryWithResult(context.Background(), fastRetryConfig(1), func() (int, error) {
		return 99, New(ErrCodeNetworkTimeout, "timeout", nil)
	})

	require.Error(t, err)
	assert.Zero(t, result)
}

func TestRetryWithResult_PlainErrorsKeepRetrying(t *testing.T) {
	// Unknown error types are assumed transient.
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(2), func() (int, error) {
		calls++
		return 0, errors.New("flaky")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestUpstreamRetryConfig(t *testing.T) {
	cfg := UpstreamRetryConfig()

	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.True(t, cfg.Jitter)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.InitialDelay)
	assert.Equal(t, 16*time.Second, cfg.MaxDelay)
}
