package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	ErrPaymentFailed  = errors.New("payment failed")
	ErrUpstreamError  = errors.New("upstream error")
	ErrCancelled      = errors.New("cancelled")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewConflictError creates a 409 error, used when a wallet session is
// already running for the same checkout context.
func NewConflictError(reason string) *APIError {
	return &APIError{
		Code:       "SESSION_IN_PROGRESS",
		Message:    reason,
		StatusCode: 409,
		Err:        ErrConflict,
	}
}

// NewStateError creates a 409 error for an event the wallet session cannot
// accept in its current state.
func NewStateError(reason string) *APIError {
	return &APIError{
		Code:       "INVALID_SESSION_STATE",
		Message:    reason,
		StatusCode: 409,
		Err:        ErrConflict,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewPaymentAPIError creates a 402 error for payment issues.
func NewPaymentAPIError(reason string) *APIError {
	return &APIError{
		Code:       "PAYMENT_ERROR",
		Message:    reason,
		StatusCode: 402,
		Err:        ErrPaymentFailed,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// === Payment Error Taxonomy ===

// PaymentErrorType classifies a failed wallet payment.
type PaymentErrorType string

const (
	// Wire name kept as AJAX_FAILURE: storefront scripts match on it.
	PaymentErrorNetwork             PaymentErrorType = "AJAX_FAILURE"
	PaymentErrorRejected            PaymentErrorType = "PAYMENT_REJECTED"
	PaymentErrorStatusNotRecognized PaymentErrorType = "STATUS_NOT_RECOGNIZED"
	PaymentErrorCancelled           PaymentErrorType = "PAYMENT_CANCELLED"
	PaymentErrorValidation          PaymentErrorType = "VALIDATION_FAILURE"
	PaymentErrorUnexpected          PaymentErrorType = "UNEXPECTED"

	// Decline reasons reported by the payment backend.
	PaymentErrorExpired           PaymentErrorType = "EXPIRED"
	PaymentErrorInsufficientFunds PaymentErrorType = "INSUFFICIENT_FUNDS"
	PaymentErrorCreditLimit       PaymentErrorType = "CREDIT_LIMIT"
	PaymentErrorInvalidCard       PaymentErrorType = "INVALID_CARD"
	PaymentErrorInvalidCVV        PaymentErrorType = "INVALID_CVV"
	PaymentErrorLostCard          PaymentErrorType = "LOST_CARD"
)

// Defaults used when a payment fails without a more specific description.
const (
	DefaultPaymentStatusText = "Payment Error"
	DefaultPaymentMessage    = "opfPayment.errors.proceedPayment"
	DefaultPaymentStatus     = -1
)

// PaymentError is the failure payload handed to wallet clients.
// Status carries the HTTP status for network failures and -1 otherwise.
type PaymentError struct {
	Type       PaymentErrorType `json:"type,omitempty"`
	StatusText string           `json:"statusText"`
	Message    string           `json:"message"`
	Status     int              `json:"status"`
}

func (e *PaymentError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: %s", e.StatusText, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is lets errors.Is(err, ErrPaymentFailed) match any payment failure and
// errors.Is(err, ErrCancelled) match a user cancellation.
func (e *PaymentError) Is(target error) bool {
	switch target {
	case ErrPaymentFailed:
		return true
	case ErrCancelled:
		return e.Type == PaymentErrorCancelled
	}
	return false
}

// NewPaymentError builds a PaymentError on top of the default payload.
func NewPaymentError(typ PaymentErrorType, message string) *PaymentError {
	if message == "" {
		message = DefaultPaymentMessage
	}
	return &PaymentError{
		Type:       typ,
		StatusText: DefaultPaymentStatusText,
		Message:    message,
		Status:     DefaultPaymentStatus,
	}
}

// NewNetworkFailure is returned after the retry budget is exhausted.
func NewNetworkFailure(status int, message string) *PaymentError {
	return &PaymentError{
		Type:       PaymentErrorNetwork,
		StatusText: "Request Failed",
		Message:    message,
		Status:     status,
	}
}

// NewCancelledError reports a wallet sheet dismissed by the shopper.
func NewCancelledError() *PaymentError {
	return NewPaymentError(PaymentErrorCancelled, "Payment was cancelled")
}
