package domain

import (
	"errors"
	"fmt"
)

// ErrValidation and related errors classify every rejected table operation.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrInvariant  = errors.New("invariant violated")
	ErrConflict   = errors.New("conflict")
)

// ValidationError reports one field that violates its type or enum contract.
type ValidationError struct {
	Field  Field
	Value  string
	Reason string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field Field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}
