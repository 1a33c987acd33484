package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Siftly error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400, malformed transport input
	ErrInvalidPatch    ErrorCode = "INVALID_PATCH"    // 422
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"   // 404
	ErrConflict        ErrorCode = "CONFLICT"         // 409, concurrent write on the same phone
	ErrOracleFailure   ErrorCode = "ORACLE_FAILURE"   // 502
	ErrNotifierFailure ErrorCode = "NOTIFIER_FAILURE" // 502
	ErrCancelled       ErrorCode = "CANCELLED"        // 499
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// SiftlyError represents a structured error with code, status, and details.
type SiftlyError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *SiftlyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *SiftlyError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for malformed or missing input.
func NewInvalidRequest(msg string) *SiftlyError {
	return &SiftlyError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidPatch creates a 422 error for a lead patch that would move a lead backwards or leave it inconsistent.
func NewInvalidPatch(phone, msg string) *SiftlyError {
	return &SiftlyError{
		Code:    ErrInvalidPatch,
		Status:  422,
		Message: msg,
		Details: map[string]any{"phone_number": phone},
	}
}

// NewNotFound creates a 404 error for when a lead cannot be found.
func NewNotFound(phone string) *SiftlyError {
	return &SiftlyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("lead not found: %s", phone),
		Details: map[string]any{"phone_number": phone},
	}
}

// NewFileNotFound creates a 404 error for missing files.
func NewFileNotFound(path string) *SiftlyError {
	return &SiftlyError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error when a lead changed between read and write.
func NewConflict(phone string, expected, actual int64) *SiftlyError {
	return &SiftlyError{
		Code:    ErrConflict,
		Status:  409,
		Message: fmt.Sprintf("lead %s was modified concurrently", phone),
		Details: map[string]any{
			"phone_number":     phone,
			"expected_version": expected,
			"actual_version":   actual,
		},
	}
}

// NewOracleFailure wraps an error from a scoring or conversational oracle.
func NewOracleFailure(provider string, err error) *SiftlyError {
	msg := "oracle call failed"
	if err != nil {
		msg = err.Error()
	}
	return &SiftlyError{
		Code:    ErrOracleFailure,
		Status:  502,
		Message: msg,
		Details: map[string]any{"provider": provider},
		cause:   err,
	}
}

// NewNotifierFailure wraps an error from an outbound notification channel.
func NewNotifierFailure(channel string, err error) *SiftlyError {
	msg := "notification failed"
	if err != nil {
		msg = err.Error()
	}
	return &SiftlyError{
		Code:    ErrNotifierFailure,
		Status:  502,
		Message: msg,
		Details: map[string]any{"channel": channel},
		cause:   err,
	}
}

// NewCancelled creates an error for an operation stopped by context cancellation.
func NewCancelled(operation string) *SiftlyError {
	return &SiftlyError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *SiftlyError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SiftlyError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a SiftlyError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SiftlyError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
