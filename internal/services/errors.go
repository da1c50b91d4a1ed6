package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no todo has the requested identifier.
	ErrNotFound = errors.New("todo not found")
	// ErrMalformedID is returned when the backend cannot parse the identifier.
	ErrMalformedID = errors.New("malformed todo id")
)

// StorageError wraps a connection or engine fault raised by a backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
