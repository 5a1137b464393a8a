package models

import "errors"

var (
	// ErrValidation marks input rejected before any network call
	ErrValidation = errors.New("validation failed")
	// ErrTransport marks a failed exchange with the judge API
	ErrTransport = errors.New("judge request failed")
)

// ValidationError describes which input was rejected and why
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
