package store

import (
	"errors"
	"fmt"
	"time"
)

// LockTimeoutError reports that the store's exclusive lock could not be
// acquired within the configured maximum wait. The operation performed no
// write and is safe to retry later.
type LockTimeoutError struct {
	Path string
	Wait time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock file %s still held after %s", e.Path, e.Wait)
}

// CorruptStoreError reports a structural failure loading the snapshot
// file. This is fatal: the process must not proceed with a partially
// parsed store, and the file is never auto-repaired.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}

// IsLockTimeout reports whether err is a lock acquisition timeout.
// Uses errors.As to handle wrapped errors.
func IsLockTimeout(err error) bool {
	var le *LockTimeoutError
	return errors.As(err, &le)
}

// IsCorruptStore reports whether err is a snapshot load failure.
// Uses errors.As to handle wrapped errors.
func IsCorruptStore(err error) bool {
	var ce *CorruptStoreError
	return errors.As(err, &ce)
}
