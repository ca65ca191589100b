package core

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceExhausted is returned when a pool acquire times out
	ErrResourceExhausted = errors.New("inference pool exhausted")

	// ErrBackendUnavailable is returned when the inference backend
	// cannot be reached during pool initialization
	ErrBackendUnavailable = errors.New("inference backend unavailable")
)

// ValidationError reports an invalid argument at an API boundary.
// Validation failures are fail-fast and create no partial state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a named field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err is a validation failure
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
