//go:build windows

package instance

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/commons-systems/pdfmerger/internal/debug"
)

// Lock is a named mutex in the session namespace. Windows closes the handle
// when the process exits, which releases the name.
type Lock struct {
	name   string
	handle windows.Handle
}

func acquire(key string) (*Lock, bool, error) {
	name := `Local\` + key
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, false, fmt.Errorf("invalid mutex name: %w", err)
	}

	handle, err := windows.CreateMutex(nil, false, namePtr)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		if handle != 0 {
			windows.CloseHandle(handle)
		}
		debug.Log("MUTEX_HELD name=%s", name)
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create mutex: %w", err)
	}

	debug.Log("MUTEX_ACQUIRED name=%s", name)
	return &Lock{name: name, handle: handle}, false, nil
}

// Path returns the mutex name.
func (l *Lock) Path() string {
	return l.name
}

// IsHeld returns true if the mutex handle is open.
func (l *Lock) IsHeld() bool {
	return l != nil && l.handle != 0
}

// Release closes the mutex handle. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(l.handle)
	l.handle = 0
	if err != nil {
		debug.Log("MUTEX_RELEASE_ERROR name=%s error=%v", l.name, err)
		return fmt.Errorf("failed to close mutex: %w", err)
	}
	debug.Log("MUTEX_RELEASED name=%s", l.name)
	return nil
}
