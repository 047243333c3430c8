package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of backend errors. Adapters
// classify so callers can decide whether a retry is worthwhile; the adapters
// themselves never retry.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content errors.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadRequest represents malformed request errors (too long, violates policy).
	ErrorTypeBadRequest
	// ErrorTypeCanceled represents caller-initiated context cancellation.
	ErrorTypeCanceled
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeCanceled:
		return "canceled"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified backend error wrapping the original cause.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("provider error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorType returns the classification name, e.g. "rate_limit".
func (e *Error) ErrorType() string {
	return e.Type.String()
}

// IsRetryable reports whether a retry could plausibly succeed. Uses a
// blocklist: everything is retryable unless known not to be.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeBadRequest, ErrorTypeCanceled:
		return false
	default:
		return true
	}
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not
// classified.
func TypeOf(err error) ErrorType {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a new classified provider error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithStatus creates a new classified provider error with HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

// NewErrorWithCause creates a new classified provider error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// Classify maps an arbitrary backend error to a classified *Error. Already
// classified errors pass through unchanged. statusCode 0 means unknown;
// adapters pass it when their SDK surfaces one.
func Classify(err error, statusCode int) *Error {
	if err == nil {
		return nil
	}
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr
	}

	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeCanceled, err, "request canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request timeout")
	}

	switch statusCode {
	case 401, 403:
		return NewErrorWithStatus(ErrorTypeAuth, statusCode, "authentication failed - check API key")
	case 429:
		return NewErrorWithStatus(ErrorTypeRateLimit, statusCode, "rate limit exceeded")
	case 400, 413, 422:
		return NewErrorWithStatus(ErrorTypeBadRequest, statusCode, "bad request - check prompt format and parameters")
	case 500, 502, 503, 504:
		return NewErrorWithStatus(ErrorTypeTransient, statusCode, "server error")
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "connection"),
		strings.Contains(errStr, "network"),
		strings.Contains(errStr, "temporary"),
		strings.Contains(errStr, "eof"),
		strings.Contains(errStr, "reset"):
		return NewErrorWithCause(ErrorTypeTransient, err, "network or connection error")
	case strings.Contains(errStr, "rate"),
		strings.Contains(errStr, "quota"),
		strings.Contains(errStr, "overloaded"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, "rate limiting detected")
	case strings.Contains(errStr, "auth"),
		strings.Contains(errStr, "api key"),
		strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "permission"):
		return NewErrorWithCause(ErrorTypeAuth, err, "authentication error")
	case strings.Contains(errStr, "invalid"),
		strings.Contains(errStr, "malformed"),
		strings.Contains(errStr, "too large"),
		strings.Contains(errStr, "context length"):
		return NewErrorWithCause(ErrorTypeBadRequest, err, "prompt or request error")
	}

	return NewErrorWithCause(ErrorTypeUnknown, err, "unclassified error")
}
