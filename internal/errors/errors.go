// Package errors provides error code definitions shared across the
// LiftLog core. Codes are stable strings so host shells (desktop,
// mobile bridges) can match on them without importing Go types.
package errors

import "fmt"

// ErrorCode represents a unique, stable error code.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Caller faults: no state change, surfaced immediately
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Local durability faults
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"

	// Sync layer faults: converted into queued retries, never
	// surfaced synchronously to a save caller
	ErrRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrRemoteRejected    ErrorCode = "REMOTE_REJECTED"

	// Terminal sync failure: item dropped from the queue, record
	// stays locally correct but unsynced
	ErrRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code, unwrapping nested
// AppErrors so wrapped codes still match.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		appErr, ok := err.(*AppError)
		if !ok {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the outermost error code, or ErrInternal for errors
// that did not originate in this package.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
