package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotReady      = errors.New("processing not completed")
	ErrIndexNotFound = errors.New("index not found")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// NotReadyError is returned when a question arrives before processing completed.
type NotReadyError struct {
	Status JobStatus
}

func (e *NotReadyError) Error() string {
	return "PDF processing not completed. Current status: " + string(e.Status)
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }

// ValidationError carries a client-facing message for rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
