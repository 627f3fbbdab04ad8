// Package errs holds the error taxonomy shared by every layer of the service.
// Callers wrap one of the sentinels with fmt.Errorf("%w: ...") and the HTTP
// edge maps them to status codes with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed or missing input. Nothing has been changed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a proposal or audit record does not exist
	ErrNotFound = errors.New("not found")

	// ErrIllegalState is returned when a transition is not permitted from the current status
	ErrIllegalState = errors.New("illegal state")

	// ErrStorage is returned when the durability layer is unavailable. Retryable.
	ErrStorage = errors.New("storage failure")
)

// Validation builds an ErrValidation with a formatted message
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound builds an ErrNotFound with a formatted message
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// IllegalState builds an ErrIllegalState with a formatted message
func IllegalState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, fmt.Sprintf(format, args...))
}

// Storage wraps a driver error as ErrStorage, keeping the cause in the chain
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// IsRetryable reports whether the caller may safely retry the operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}
