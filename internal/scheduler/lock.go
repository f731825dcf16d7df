package scheduler

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
)

// ErrLocked is returned when another process holds the scheduler lock.
var ErrLocked = eris.New("scheduler: another instance is running")

// DefaultLockPath is the lock file used when none is configured.
func DefaultLockPath() string {
	return filepath.Join(os.TempDir(), "landscore_scheduler.lock")
}

// Lock is an exclusive advisory file lock held for the life of the process.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the lock at path without blocking. An empty path uses
// DefaultLockPath.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		path = DefaultLockPath()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "scheduler: open lock %s", path)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, eris.Wrapf(err, "scheduler: lock %s", path)
	}

	_ = f.Truncate(0)
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return &Lock{path: path, f: f}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. The file is left in place.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	if err != nil {
		return eris.Wrap(err, "scheduler: release lock")
	}
	return nil
}
