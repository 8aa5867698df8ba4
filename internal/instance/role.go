// Package instance decides whether this process is the primary pdfmerger
// instance or a secondary that must hand its paths over and exit.
package instance

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/commons-systems/pdfmerger/internal/debug"
)

// Role is decided once per process and never changes afterwards.
type Role int

const (
	// Primary owns the window and the path channel listener.
	Primary Role = iota
	// Secondary forwards its paths to the primary and exits.
	Secondary
)

func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ErrUnavailable is returned when the exclusivity primitive cannot be
// acquired or queried. Callers must treat it as fatal.
var ErrUnavailable = errors.New("single-instance lock unavailable")

// AcquireOrDetect takes the exclusive resource named by key. On success the
// process is Primary and the returned Lock must be kept for the process
// lifetime. If another live process holds it the role is Secondary and the
// Lock is nil.
func AcquireOrDetect(key string) (Role, *Lock, error) {
	if strings.TrimSpace(key) == "" {
		return Secondary, nil, fmt.Errorf("%w: empty key", ErrUnavailable)
	}

	lock, held, err := acquire(key)
	if err != nil {
		debug.Log("INSTANCE_LOCK_ERROR key=%s error=%v", key, err)
		return Secondary, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if held {
		debug.Log("INSTANCE_SECONDARY key=%s", key)
		return Secondary, nil, nil
	}

	debug.Log("INSTANCE_PRIMARY key=%s pid=%d", key, os.Getpid())
	return Primary, lock, nil
}

// ReadPID returns the diagnostic PID stored in a lock file, or 0 when the
// file is missing or does not hold a PID.
func ReadPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}
