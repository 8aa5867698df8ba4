//go:build !windows

package instance

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/commons-systems/pdfmerger/internal/debug"
	"github.com/commons-systems/pdfmerger/internal/namespace"
)

// Lock is an exclusive flock on <namespace>/<key>.lock. The kernel drops it
// when the process exits, including on crashes.
type Lock struct {
	path string
	file *os.File
}

// acquire reports held=true when another process owns the lock.
func acquire(key string) (*Lock, bool, error) {
	if _, err := namespace.Ensure(); err != nil {
		return nil, false, err
	}
	path := namespace.LockFile(key)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			debug.Log("LOCKFILE_HELD path=%s pid=%d", path, ReadPID(path))
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := writePID(file); err != nil {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
		return nil, false, err
	}

	debug.Log("LOCKFILE_ACQUIRED path=%s pid=%d", path, os.Getpid())
	return &Lock{path: path, file: file}, false, nil
}

func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	return file.Sync()
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// IsHeld returns true if the lock is currently held.
func (l *Lock) IsHeld() bool {
	return l != nil && l.file != nil
}

// Release drops the lock. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	var errs []error
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		debug.Log("LOCKFILE_RELEASE_ERROR path=%s error=%v", l.path, err)
		errs = append(errs, fmt.Errorf("failed to release lock: %w", err))
	}
	if err := l.file.Close(); err != nil {
		debug.Log("LOCKFILE_CLOSE_ERROR path=%s error=%v", l.path, err)
		errs = append(errs, fmt.Errorf("failed to close file: %w", err))
	}

	debug.Log("LOCKFILE_RELEASED path=%s", l.path)
	l.file = nil
	return errors.Join(errs...)
}
