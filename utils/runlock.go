package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another pipeline run holds the lock")

// RunLock keeps two processes from working on the same store at once.
type RunLock struct {
	lock *flock.Flock
}

// AcquireRunLock takes the lock at path without waiting.
func AcquireRunLock(path string) (*RunLock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("runlock: create dir: %w", err)
		}
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("runlock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("runlock %s: %w", path, ErrRunInProgress)
	}
	return &RunLock{lock: fl}, nil
}

// Release unlocks. Calling it on a nil lock is a no-op.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
