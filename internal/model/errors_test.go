package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError(t *testing.T) {
	backend := errors.New("503 Service Unavailable")
	tests := []struct {
		name       string
		err        *APIError
		wantText   string
		wantUnwrap error
	}{
		{
			name:     "message only",
			err:      &APIError{Code: "SESSION_IN_PROGRESS", Message: "Google Pay is already in progress"},
			wantText: "SESSION_IN_PROGRESS: Google Pay is already in progress",
		},
		{
			name:       "wrapping a backend failure",
			err:        &APIError{Code: "UPSTREAM_ERROR", Message: "storefront request failed", Err: backend},
			wantText:   "UPSTREAM_ERROR: storefront request failed (503 Service Unavailable)",
			wantUnwrap: backend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantText {
				t.Errorf("Error() = %q, want %q", got, tt.wantText)
			}
			if got := tt.err.Unwrap(); got != tt.wantUnwrap {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantUnwrap)
			}
		})
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("wallet session")

	if err.Code != "NOT_FOUND" {
		t.Errorf("Code = %q, want %q", err.Code, "NOT_FOUND")
	}
	if err.Message != "wallet session not found" {
		t.Errorf("Message = %q, want %q", err.Message, "wallet session not found")
	}
	if err.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 404)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("error should wrap ErrNotFound sentinel")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("email", "must be valid email address")

	if err.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want %q", err.Code, "VALIDATION_ERROR")
	}
	if err.Message != "invalid email: must be valid email address" {
		t.Errorf("Message = %q, want %q", err.Message, "invalid email: must be valid email address")
	}
	if err.StatusCode != 400 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 400)
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Error("error should wrap ErrInvalidRequest sentinel")
	}
}

func TestNewConflictError(t *testing.T) {
	err := NewConflictError("Apple Pay is already in progress")

	if err.Code != "SESSION_IN_PROGRESS" {
		t.Errorf("Code = %q, want %q", err.Code, "SESSION_IN_PROGRESS")
	}
	if err.StatusCode != 409 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 409)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("error should wrap ErrConflict sentinel")
	}
}

func TestNewStateError(t *testing.T) {
	err := NewStateError("wallet session is not active")

	if err.Code != "INVALID_SESSION_STATE" {
		t.Errorf("Code = %q, want %q", err.Code, "INVALID_SESSION_STATE")
	}
	if err.StatusCode != 409 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 409)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("error should wrap ErrConflict sentinel")
	}
}

func TestNewUpstreamError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewUpstreamError("storefront", underlying)

	if err.Code != "UPSTREAM_ERROR" {
		t.Errorf("Code = %q, want %q", err.Code, "UPSTREAM_ERROR")
	}
	if err.Message != "storefront request failed" {
		t.Errorf("Message = %q, want %q", err.Message, "storefront request failed")
	}
	if err.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 502)
	}
	if !errors.Is(err, ErrUpstreamError) {
		t.Error("error should wrap ErrUpstreamError sentinel")
	}
	// Verify the underlying error is preserved in the chain
	if err.Err == nil {
		t.Error("wrapped error should not be nil")
	}
}

func TestNewPaymentAPIError(t *testing.T) {
	err := NewPaymentAPIError("card declined")

	if err.Code != "PAYMENT_ERROR" {
		t.Errorf("Code = %q, want %q", err.Code, "PAYMENT_ERROR")
	}
	if err.Message != "card declined" {
		t.Errorf("Message = %q, want %q", err.Message, "card declined")
	}
	if err.StatusCode != 402 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 402)
	}
	if !errors.Is(err, ErrPaymentFailed) {
		t.Error("error should wrap ErrPaymentFailed sentinel")
	}
}

func TestNewInternalError(t *testing.T) {
	underlying := errors.New("null pointer dereference")
	err := NewInternalError(underlying)

	if err.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %q, want %q", err.Code, "INTERNAL_ERROR")
	}
	if err.Message != "an internal error occurred" {
		t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
	}
	if err.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, 500)
	}
	if err.Err != underlying {
		t.Error("wrapped error should be preserved")
	}
}

func TestNewPaymentError(t *testing.T) {
	tests := []struct {
		name        string
		typ         PaymentErrorType
		message     string
		wantMessage string
	}{
		{"rejected", PaymentErrorRejected, "Payment was rejected", "Payment was rejected"},
		{"empty message uses default", PaymentErrorUnexpected, "", DefaultPaymentMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPaymentError(tt.typ, tt.message)
			if err.Type != tt.typ {
				t.Errorf("Type = %q, want %q", err.Type, tt.typ)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
			if err.StatusText != "Payment Error" {
				t.Errorf("StatusText = %q, want %q", err.StatusText, "Payment Error")
			}
			if err.Status != -1 {
				t.Errorf("Status = %d, want -1", err.Status)
			}
		})
	}
}

func TestNewNetworkFailure(t *testing.T) {
	err := NewNetworkFailure(503, "error")

	if err.Type != "AJAX_FAILURE" {
		t.Errorf("Type = %q, want AJAX_FAILURE", err.Type)
	}
	if err.StatusText != "Request Failed" {
		t.Errorf("StatusText = %q, want %q", err.StatusText, "Request Failed")
	}
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
}

func TestPaymentErrorIs(t *testing.T) {
	cancelled := NewCancelledError()
	if !errors.Is(cancelled, ErrCancelled) {
		t.Error("cancelled error should match ErrCancelled")
	}
	if !errors.Is(cancelled, ErrPaymentFailed) {
		t.Error("cancelled error should match ErrPaymentFailed")
	}

	rejected := fmt.Errorf("submit: %w", NewPaymentError(PaymentErrorRejected, "Payment was rejected"))
	if errors.Is(rejected, ErrCancelled) {
		t.Error("rejected error should not match ErrCancelled")
	}
	var pe *PaymentError
	if !errors.As(rejected, &pe) || pe.Type != PaymentErrorRejected {
		t.Errorf("errors.As = %v, want PAYMENT_REJECTED", pe)
	}
}

// TestErrorsIs verifies that errors.Is() works correctly with all sentinel errors.
// This is critical for handler code that uses errors.Is() to determine response codes.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		sentinel error
	}{
		{"NotFound", NewNotFoundError("x"), ErrNotFound},
		{"Validation", NewValidationError("x", "y"), ErrInvalidRequest},
		{"Conflict", NewConflictError("x"), ErrConflict},
		{"Upstream", NewUpstreamError("x", nil), ErrUpstreamError},
		{"Payment", NewPaymentAPIError("x"), ErrPaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%T, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

// TestAPIErrorImplementsError verifies the error interface is properly implemented.
func TestAPIErrorImplementsError(t *testing.T) {
	var err error = &APIError{Code: "TEST", Message: "test"}
	_ = err.Error() // Should compile and not panic

	// Verify it works with fmt.Errorf wrapping
	wrapped := fmt.Errorf("outer: %w", err)
	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Error("errors.As should find *APIError in wrapped error")
	}
}
