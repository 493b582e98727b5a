package store

import (
	"errors"
	"fmt"
)

// Common store errors
var (
	// ErrIndexOutOfRange is returned when a row index does not exist.
	ErrIndexOutOfRange = errors.New("row index out of range")

	// ErrCorruptStore is returned when the data file cannot be parsed.
	ErrCorruptStore = errors.New("card store file is corrupt")

	// ErrNoImage is returned when a contact is saved without its card image.
	ErrNoImage = errors.New("card image is required")

	// ErrImageMissing is returned when a saved row's card image is not on disk.
	ErrImageMissing = errors.New("card image not found")
)

// StoreError wraps errors with the store operation and file involved.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapStoreError wraps an error as a StoreError if it isn't already one.
func WrapStoreError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	return &StoreError{Op: op, Path: path, Err: err}
}
