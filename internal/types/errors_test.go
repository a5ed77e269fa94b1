package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewAppError(ErrCodeValidationMalformedEvent, "missing type", nil),
			want: "validation_malformed_event: missing type",
		},
		{
			name: "with cause",
			err:  NewAppError(ErrCodeUpstreamTimeout, "builds API timed out", errors.New("context deadline exceeded")),
			want: "upstream_timeout: builds API timed out: context deadline exceeded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeUpstreamUnavailable, "builds API unreachable", underlying)

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", appErr.Unwrap(), underlying)
	}
	if NewAppError(ErrCodeInternalUnexpected, "x", nil).Unwrap() != nil {
		t.Error("Unwrap() should return nil when Err is nil")
	}
}

func TestAppErrorErrorsAsAndIs(t *testing.T) {
	appErr := NewAppError(ErrCodeDeliveryRejected, "webhook returned 404", ErrMalformedEvent)
	wrapped := fmt.Errorf("deliver: %w", appErr)

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeDeliveryRejected {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeDeliveryRejected)
	}
	if !errors.Is(wrapped, ErrMalformedEvent) {
		t.Error("errors.Is should reach the sentinel through Unwrap")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("outer: %w", NewAppError(ErrCodeUpstreamRateLimited, "429", nil))); got != ErrCodeUpstreamRateLimited {
		t.Errorf("CodeOf(wrapped) = %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
}

func TestErrorCodeCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeValidationMalformedEvent: "validation",
		ErrCodeUpstreamTimeout:          "upstream",
		ErrCodeDeliveryNotConfigured:    "delivery",
		ErrCodeInternalUnexpected:       "internal",
		"nounderscore":                  "nounderscore",
	}
	for code, want := range tests {
		if got := code.Category(); got != want {
			t.Errorf("%q.Category() = %q, want %q", code, got, want)
		}
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppError(ErrCodeDeliveryRejected, "rejected", nil).WithDetails(map[string]any{"status_code": 500})
	enhanced := original.WithDetails(map[string]any{"status_code": 404, "body": "no_service"})

	if original.Details["status_code"] != 500 {
		t.Errorf("WithDetails mutated the original: %v", original.Details)
	}
	if _, ok := original.Details["body"]; ok {
		t.Error("WithDetails should not add keys to the original")
	}
	if enhanced.Details["status_code"] != 404 || enhanced.Details["body"] != "no_service" {
		t.Errorf("enhanced details = %v", enhanced.Details)
	}
	if enhanced.Code != original.Code || enhanced.Message != original.Message {
		t.Error("Code and Message should carry over")
	}
}
