package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDexError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with DexError
	dexErr := New(ErrCodeSourceNotFound, "package not found: left-pad", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, dexErr)
	assert.Equal(t, originalErr, errors.Unwrap(dexErr))
	assert.True(t, errors.Is(dexErr, originalErr))
}

func TestDexError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "source error",
			code:     ErrCodeSourceNotFound,
			message:  "package left-pad not found",
			expected: "[ERR_201_SOURCE_NOT_FOUND] package left-pad not found",
		},
		{
			name:     "network error",
			code:     ErrCodeNetworkTimeout,
			message:  "request timed out",
			expected: "[ERR_301_NETWORK_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestDexError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeSourceNotFound, "package A not found", nil)
	err2 := New(ErrCodeSourceNotFound, "package B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestDexError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeSourceNotFound, "package not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestDexError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeSourceNotFound, "package not found", nil)

	// When: adding details
	err = err.WithDetail("package", "@mui/material")
	err = err.WithDetail("version", "5.15.0")

	// Then: details are available
	assert.Equal(t, "@mui/material", err.Details["package"])
	assert.Equal(t, "5.15.0", err.Details["version"])
}

func TestDexError_WithSuggestion_AddsSuggestion(t *testing.T) {
	// Given: a network error
	err := New(ErrCodeNetworkTimeout, "connection timed out", nil)

	// When: adding suggestion
	err = err.WithSuggestion("Check your network connection")

	// Then: suggestion is available
	assert.Equal(t, "Check your network connection", err.Suggestion)
}

func TestDexError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeSourceNotFound, CategorySource},
		{ErrCodeParseFailed, CategorySource},
		{ErrCodeRateLimited, CategorySource},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeNetworkUnavailable, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeQueryEmpty, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeEmbeddingFailed, CategoryInternal},
		{ErrCodeCacheUnavailable, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestDexError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeNetworkTimeout, true},
		{ErrCodeNetworkUnavailable, true},
		{ErrCodeRateLimited, true},
		{ErrCodeUpstreamError, true},
		{ErrCodeSourceNotFound, false},
		{ErrCodeParseFailed, false},
		{ErrCodeQueryEmpty, false},
		{ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
			assert.Equal(t, tt.wantRetryable, IsRetryable(err))
		})
	}
}

func TestDexError_SeverityFromCode(t *testing.T) {
	// Fatal: vector store gone
	assert.Equal(t, SeverityFatal, New(ErrCodeStoreUnavailable, "store down", nil).Severity)

	// Warning: cache outage degrades but continues
	assert.Equal(t, SeverityWarning, New(ErrCodeCacheUnavailable, "redis down", nil).Severity)

	// Warning: retryable network blips
	assert.Equal(t, SeverityWarning, New(ErrCodeNetworkTimeout, "timeout", nil).Severity)

	// Error: everything else
	assert.Equal(t, SeverityError, New(ErrCodeParseFailed, "no components", nil).Severity)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrap_UsesErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeNetworkUnavailable, cause)

	require.NotNil(t, err)
	assert.Equal(t, "connection refused", err.Message)
	assert.Equal(t, cause, err.Cause)
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeConfigInvalid, ConfigError("bad config", nil).Code)
	assert.Equal(t, ErrCodeSourceNotFound, NotFoundError("missing", nil).Code)
	assert.Equal(t, ErrCodeParseFailed, ParseError("no components", nil).Code)
	assert.Equal(t, ErrCodeNetworkTimeout, NetworkError("timeout", nil).Code)
	assert.Equal(t, ErrCodeInvalidInput, ValidationError("bad input", nil).Code)
	assert.Equal(t, ErrCodeInternal, InternalError("boom", nil).Code)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeStoreUnavailable, "store down", nil)))
	assert.False(t, IsFatal(New(ErrCodeParseFailed, "no components", nil)))
	assert.False(t, IsFatal(errors.New("plain error")))
	assert.False(t, IsFatal(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeRateLimited, GetCode(New(ErrCodeRateLimited, "429", nil)))
	assert.Empty(t, GetCode(errors.New("plain error")))
}

func TestGetCategory(t *testing.T) {
	assert.Equal(t, CategorySource, GetCategory(New(ErrCodeParseFailed, "msg", nil)))
	assert.Empty(t, string(GetCategory(errors.New("plain error"))))
}
