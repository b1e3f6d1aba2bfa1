package errors

import "errors"

// ValidationError reports that a caller supplied insufficient or invalid input.
// It is surfaced immediately and never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err is a ValidationError (even when wrapped).
func IsValidation(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
