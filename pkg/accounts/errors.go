package accounts

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when no account has the requested id.
	ErrNotFound = errors.New("account not found")

	// ErrAccountUnavailable is returned by the Resolver when no account is active.
	ErrAccountUnavailable = errors.New("no active account configured")
)

// StorageError represents a failure of the persistence backend.
type StorageError struct {
	Backend   string // "sqlite", "memory"
	Operation string // "create", "activate", "list", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("account storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// ValidationError reports an invalid account field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid account %s: %s", e.Field, e.Message)
}
