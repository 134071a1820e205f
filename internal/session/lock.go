package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const lockFileName = "sweep.lock"

// ErrLocked is returned when another run holds the session directory
var ErrLocked = errors.New("session directory is locked by another run")

// Lock is an exclusive lock file guarding a session directory
type Lock struct {
	path string
}

// AcquireLock creates the lock file in dir, failing with ErrLocked if it exists.
// A lock left behind by a crashed run must be removed by hand.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, stateDirMode); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, stateFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	return &Lock{path: path}, nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
