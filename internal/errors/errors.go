// Package errors provides shared error types used across multiple packages.
// This package exists to avoid import cycles between the stats service and
// its subpackages.
package errors

import (
	"errors"
	"fmt"
)

// NotReadyError reports that a statistics query was made before the
// application context (most importantly the current user) finished
// initializing. It is the only error the public read methods raise
// synchronously; everything else degrades to a fallback or propagates
// from the loader.
type NotReadyError struct {
	message string
	cause   error
}

// Error implements the error interface.
func (e *NotReadyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying cause error for error unwrapping.
func (e *NotReadyError) Unwrap() error {
	return e.cause
}

// Is checks if the target error is a NotReadyError.
func (e *NotReadyError) Is(target error) bool {
	_, ok := target.(*NotReadyError)
	return ok
}

// NewNotReadyError creates a new not-ready error with a message and optional cause.
func NewNotReadyError(message string, cause error) error {
	return &NotReadyError{
		message: message,
		cause:   cause,
	}
}

// IsNotReady checks if an error is a precondition ("not ready") failure.
func IsNotReady(err error) bool {
	if err == nil {
		return false
	}
	var notReadyErr *NotReadyError
	return errors.As(err, &notReadyErr)
}

// ErrUserNotReady indicates that no current user ID is available yet.
var ErrUserNotReady = &NotReadyError{
	message: "user context not initialized",
}
