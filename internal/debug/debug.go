// Package debug provides opt-in event logging for pdfmerger.
//
// Messages use the EVENT_NAME key=value convention, e.g.
//
//	debug.Log("CHANNEL_ACCEPT_ERROR error=%v", err)
//
// Logging is disabled until Init is called. Output never goes to the terminal,
// because the UI owns it.
package debug

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// EnvVar enables debug logging when set to a non-empty value.
const EnvVar = "PDFMERGE_DEBUG"

var (
	enabled atomic.Bool
	mu      sync.Mutex
	file    *os.File
)

// Requested reports whether the environment asks for debug logging.
func Requested() bool {
	return os.Getenv(EnvVar) != ""
}

// Init opens path for appending and routes Log output to it. Calling Init again
// switches to the new file.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	f, err := tea.LogToFile(path, fmt.Sprintf("pdfmerger[%d]", os.Getpid()))
	if err != nil {
		return fmt.Errorf("failed to open debug log %s: %w", path, err)
	}
	if file != nil {
		file.Close()
	}
	file = f
	enabled.Store(true)
	Log("DEBUG_INIT path=%s", path)
	return nil
}

// Close stops logging and closes the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	enabled.Store(false)
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	log.SetOutput(os.Stderr)
	return err
}

// Enabled reports whether Log writes anywhere.
func Enabled() bool {
	return enabled.Load()
}

// Log writes one event line when logging is enabled.
func Log(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	log.Printf(format, args...)
}
