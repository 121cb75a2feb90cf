// Package mcp implements the Model Context Protocol server for UIdex.
package mcp

import (
	"context"
	"errors"
	"fmt"

	dexerrors "github.com/uidex/uidex/internal/errors"
)

// Custom MCP error codes for UIdex.
const (
	// ErrCodeSourceNotFound indicates the upstream package or site
	// does not exist.
	ErrCodeSourceNotFound = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out upstream.
	ErrCodeTimeout = -32003

	// ErrCodeStoreUnavailable indicates the vector store is down.
	ErrCodeStoreUnavailable = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var dexErr *dexerrors.DexError
	if errors.As(err, &dexErr) {
		return mapDexError(dexErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// mapDexError converts a DexError to an MCPError, appending the
// suggestion so AI clients can act on it.
func mapDexError(de *dexerrors.DexError) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s %s", de.Message, de.Suggestion)
	}

	switch de.Category {
	case dexerrors.CategorySource:
		code := ErrCodeInternalError
		switch de.Code {
		case dexerrors.ErrCodeSourceNotFound:
			code = ErrCodeSourceNotFound
		case dexerrors.ErrCodeRateLimited, dexerrors.ErrCodeUpstreamError:
			code = ErrCodeTimeout
		}
		return &MCPError{Code: code, Message: message}

	case dexerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}

	case dexerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}

	case dexerrors.CategoryInternal:
		switch de.Code {
		case dexerrors.ErrCodeEmbeddingFailed:
			return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
		case dexerrors.ErrCodeStoreUnavailable:
			return &MCPError{Code: ErrCodeStoreUnavailable, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}

	default: // CategoryConfig and unknown
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
