package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Components MUST use these instead of hardcoded strings.
const (
	// Validation: the inbound message can never be processed.
	ErrCodeValidationMalformedEvent ErrorCode = "validation_malformed_event"
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"

	// Upstream: the Builds API or the chat sink misbehaved.
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamBadResponse   ErrorCode = "upstream_bad_response"
	ErrCodeUpstreamTimeout       ErrorCode = "upstream_timeout"
	ErrCodeDeliveryRejected      ErrorCode = "delivery_rejected"
	ErrCodeDeliveryNotConfigured ErrorCode = "delivery_not_configured"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// ErrMalformedEvent marks messages that are structurally invalid and must be
// dropped without retry.
var ErrMalformedEvent = errors.New("malformed build event")

// Category returns the prefix group of the code ("validation", "upstream", ...).
func (c ErrorCode) Category() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}

// AppError is the standard application error type. It supports error chains
// through Unwrap so callers can use errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
