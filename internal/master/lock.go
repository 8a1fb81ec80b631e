// ABOUTME: Exclusive run lock so two masters never fight over agent ports in one directory.
// ABOUTME: Uses gofrs/flock with a non-blocking try.

package master

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning indicates another master holds the run lock.
var ErrAlreadyRunning = errors.New("another master is already running (lock held)")

// AcquireRunLock takes the lock at path without blocking. An empty path
// disables locking. The returned function releases the lock.
func AcquireRunLock(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	fileLock := flock.New(path)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return func() { _ = fileLock.Unlock() }, nil
}
