// Package apperrors defines the error kinds shared across services and
// repositories. Services wrap these sentinels; the tool layer maps them to
// envelope error codes.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrConfig     = errors.New("configuration error")
	ErrDatabase   = errors.New("database error")
)

// NotFoundError reports a missing entity with enough context for the caller
// to identify what was looked up.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.EntityType, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a NotFoundError for the given entity type and id.
func NewNotFound(entityType, id string) error {
	return &NotFoundError{EntityType: entityType, ID: id}
}

// ValidationError reports malformed input or a pre-commit invariant
// violation. Details carries structured context for the error envelope.
type ValidationError struct {
	Message string
	Details any
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation creates a ValidationError with a formatted message.
func NewValidation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewValidationWithDetails creates a ValidationError carrying structured
// details.
func NewValidationWithDetails(message string, details any) error {
	return &ValidationError{Message: message, Details: details}
}

// ConflictError reports an optimistic-lock mismatch or a structural
// conflict (cycle, duplicate ordinal). The caller should refresh and retry.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflict creates a ConflictError with a formatted message.
func NewConflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is (or wraps) a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is (or wraps) a conflict error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
