package oui

import (
	"errors"
	"fmt"
)

var (
	// ErrVendorNotFound indicates no vendor was found for the given address
	ErrVendorNotFound = errors.New("vendor not found")

	// ErrRepositoryClosed indicates the repository has been closed
	ErrRepositoryClosed = errors.New("repository is closed")

	// ErrInvalidPrefix indicates an OUI prefix that is not three hex octets
	ErrInvalidPrefix = errors.New("invalid OUI prefix")
)

// DatabaseError wraps database-specific errors with context
type DatabaseError struct {
	Op  string // Operation that failed (e.g., "lookup", "insert")
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
