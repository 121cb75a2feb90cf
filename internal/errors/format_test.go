package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_IncludesSuggestionAndCode(t *testing.T) {
	// Given: a DexError with a suggestion
	err := New(ErrCodeSourceNotFound, "package left-pad not found", nil).
		WithSuggestion("Check the package name on npmjs.com")

	// When: formatting for the user
	out := FormatForUser(err, false)

	// Then: message, suggestion, and code appear
	assert.Contains(t, out, "package left-pad not found")
	assert.Contains(t, out, "Check the package name")
	assert.Contains(t, out, "ERR_201_SOURCE_NOT_FOUND")
}

func TestFormatForUser_PlainError(t *testing.T) {
	err := errors.New("plain failure")
	assert.Equal(t, "plain failure", FormatForUser(err, false))
}

func TestFormatForUser_Nil(t *testing.T) {
	assert.Empty(t, FormatForUser(nil, false))
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	err := errors.New("plain failure")
	out := FormatForCLI(err)

	assert.Contains(t, out, "plain failure")
	assert.Contains(t, out, ErrCodeInternal)
}

func TestFormatJSON_RoundTrips(t *testing.T) {
	// Given: a DexError with details
	err := New(ErrCodeRateLimited, "registry throttled us", nil).
		WithDetail("package", "react").
		WithDetail(DetailRetryAfter, "30")

	// When: formatting as JSON
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Then: structured fields survive
	assert.Equal(t, ErrCodeRateLimited, decoded["code"])
	assert.Equal(t, "SOURCE", decoded["category"])
	assert.Equal(t, true, decoded["retryable"])

	details, ok := decoded["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "react", details["package"])
}

func TestFormatForLog_StructuredFields(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(ErrCodeNetworkUnavailable, cause).
		WithDetail("url", "https://registry.npmjs.org/react")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeNetworkUnavailable, fields["error_code"])
	assert.Equal(t, "NETWORK", fields["category"])
	assert.Equal(t, true, fields["retryable"])
	assert.Equal(t, "dial tcp: connection refused", fields["cause"])
	assert.Equal(t, "https://registry.npmjs.org/react", fields["detail_url"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	fields := FormatForLog(errors.New("plain"))
	assert.Equal(t, "plain", fields["error"])
}

func TestFormatForLog_Nil(t *testing.T) {
	assert.Nil(t, FormatForLog(nil))
}
