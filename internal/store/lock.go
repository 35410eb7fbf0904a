package store

import (
	"context"
	"fmt"
	"os"
	"time"
)

// locker is a scoped exclusive lock keyed on a lock file's existence.
//
// The lock file protocol is shared with external contributors that are not
// this process, so an OS-level advisory lock is not enough: the presence
// of the file itself is the lock. Acquisition creates the file with
// O_EXCL; contention is resolved by polling until the deadline.
type locker struct {
	path string
	wait time.Duration
	poll time.Duration
}

// acquire creates the lock file, polling until it succeeds, the wait
// budget is exhausted, or ctx is cancelled.
func (l *locker) acquire(ctx context.Context) error {
	deadline := time.Now().Add(l.wait)
	for {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			if cerr := f.Close(); cerr != nil {
				os.Remove(l.path)
				return fmt.Errorf("write lock file: %w", cerr)
			}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock file: %w", err)
		}
		if time.Now().After(deadline) {
			return &LockTimeoutError{Path: l.path, Wait: l.wait}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-time.After(l.poll):
		}
	}
}

// release removes the lock file. Missing files are tolerated so release
// stays safe on every exit path.
func (l *locker) release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}
