package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is the sentinel behind every InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage is matched by every StorageError.
	ErrStorage = errors.New("storage error")

	// ErrDuplicateRecurring is returned when a recurring transaction already
	// exists for the same (source type, source id, source month).
	ErrDuplicateRecurring = errors.New("duplicate recurring transaction")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// InvalidInputError describes a malformed month key, day of month or record field.
type InvalidInputError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, fmt.Sprint(e.Value), e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field string, value any, reason string) error {
	return &InvalidInputError{Field: field, Value: value, Reason: reason}
}

// StorageError wraps a failure from the ledger store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError wraps err, returning nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if a later run might succeed where this one failed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage) && !errors.Is(err, ErrDuplicateRecurring) && !errors.Is(err, ErrNotFound)
}
