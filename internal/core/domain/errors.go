package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain validation.
var (
	ErrEmptyAddress   = errors.New("empty hardware address")
	ErrInvalidAddress = errors.New("invalid hardware address")
	ErrInvalidDevice  = errors.New("device id must be positive")
	ErrDuplicateEntry = errors.New("duplicate registry entry")
	ErrNotFound       = errors.New("record not found")
)

// ValidationError wraps validation errors with the invalid value
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
