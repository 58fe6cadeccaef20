package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Signal error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED" // 400
	ErrHashMismatch     ErrorCode = "HASH_MISMATCH"     // 400
	ErrInvalidSignature ErrorCode = "INVALID_SIGNATURE" // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrConflict         ErrorCode = "CONFLICT"          // 409 (record collection changed under us)
	ErrPayloadTooLarge  ErrorCode = "PAYLOAD_TOO_LARGE" // 413
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrPersistence      ErrorCode = "PERSISTENCE"       // 503
)

// SignalError represents a structured error with code, status, and details.
type SignalError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *SignalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *SignalError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SignalError {
	return &SignalError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewValidationFailed creates a 400 error carrying every validation message.
func NewValidationFailed(errs []string) *SignalError {
	return &SignalError{
		Code:    ErrValidationFailed,
		Status:  400,
		Message: "validation failed",
		Details: map[string]any{"errors": errs},
	}
}

// NewHashMismatch creates a 400 error when the claimed content hash does not
// match the hash recomputed from the excerpt.
func NewHashMismatch(claimed, computed string) *SignalError {
	return &SignalError{
		Code:    ErrHashMismatch,
		Status:  400,
		Message: "content hash mismatch",
		Details: map[string]any{"claimed": claimed, "computed": computed},
	}
}

// NewInvalidSignature creates a 400 error for a failed signature check.
func NewInvalidSignature() *SignalError {
	return &SignalError{
		Code:    ErrInvalidSignature,
		Status:  400,
		Message: "invalid signature",
	}
}

// NewNotFound creates a 404 error for a missing record or author.
func NewNotFound(kind, identifier string) *SignalError {
	return &SignalError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for a lost compare-and-swap.
func NewConflict(msg string) *SignalError {
	return &SignalError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewPayloadTooLarge creates a 413 error when a request body exceeds the limit.
func NewPayloadTooLarge(max int64) *SignalError {
	return &SignalError{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("request body exceeds %d bytes", max),
		Details: map[string]any{"max_bytes": max},
	}
}

// NewPersistence creates a 503 error when the record collection could not be
// read or written. Like NewInternal, the backend error lands in Details only.
func NewPersistence(err error) *SignalError {
	details := map[string]any{}
	if err != nil {
		details["persistence_error"] = err.Error()
	}
	return &SignalError{
		Code:    ErrPersistence,
		Status:  503,
		Message: "the record store is unavailable",
		Details: details,
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *SignalError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &SignalError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Private reports whether Details hold backend causes that must not reach
// remote callers.
func (e *SignalError) Private() bool {
	return e.Code == ErrInternal || e.Code == ErrPersistence
}

// As extracts a *SignalError from err, wrapping anything else as INTERNAL.
func As(err error) *SignalError {
	var sErr *SignalError
	if stderrors.As(err, &sErr) {
		return sErr
	}
	return NewInternal(err)
}

// Is checks if an error is a SignalError with the given code.
// Wrapped errors are unwrapped.
func Is(err error, code ErrorCode) bool {
	var sErr *SignalError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
