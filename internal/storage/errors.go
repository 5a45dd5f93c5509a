package storage

import (
	"errors"
	"fmt"
)

// StorageError marks a transient storage failure: I/O errors, lock
// contention, bounded-timeout expiry. The failed record/query call may
// be retried as a whole. Validation failures never wear this type; they
// surface as the core sentinels before any write happens.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a retryable storage
// failure.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
