// Package pid guards against running two daemons against the same GPU.
package pid

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"github.com/gofrs/flock"
)

// Lock is an exclusive advisory lock on a file that also records the owning
// process ID.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock at path without blocking. It fails with
// ErrAlreadyRunning if another process holds it.
func Acquire(path string) (*Lock, error) {
	errFactory := errors.New()
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err).WithData(path)
	}
	if !locked {
		if owner, err := Owner(path); err == nil {
			return nil, errFactory.WithData(errors.ErrAlreadyRunning, owner)
		}
		return nil, errFactory.WithData(errors.ErrAlreadyRunning, path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		_ = fl.Unlock()
		return nil, errFactory.Wrap(errors.ErrInternal, err).WithData(path)
	}

	return &Lock{fl: fl}, nil
}

func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release removes the lock file and then unlocks it. Removing while the lock
// is still held keeps a process that acquires in between from losing its
// freshly written file.
func (l *Lock) Release() error {
	errFactory := errors.New()

	removeErr := os.Remove(l.fl.Path())
	if err := l.fl.Unlock(); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return errFactory.Wrap(errors.ErrInternal, removeErr)
	}

	return nil
}

// Owner returns the process ID recorded in the lock file.
func Owner(path string) (int, error) {
	errFactory := errors.New()

	b, err := os.ReadFile(path)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrResourceNotFound, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrInternal, err)
	}

	return pid, nil
}
