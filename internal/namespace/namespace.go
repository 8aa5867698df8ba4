package namespace

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// InstanceKey names the single-instance lock. It must stay stable across
	// releases or old and new builds stop detecting each other.
	InstanceKey = "PDFMergerSingleInstanceKey"

	// ChannelName names the path channel endpoint. Co-designed with InstanceKey:
	// only the holder of InstanceKey listens on ChannelName.
	ChannelName = "PDFMergerSingleInstancePipe"

	// EnvVar overrides the runtime directory.
	EnvVar = "PDFMERGE_NAMESPACE"

	appDir = "pdfmerger"
)

// Dir returns the runtime directory shared by all pdfmerger processes of the
// current user.
//
// Resolution order: $PDFMERGE_NAMESPACE, $XDG_RUNTIME_DIR/pdfmerger, then
// <tmp>/pdfmerger-<uid>.
func Dir() string {
	if dir := os.Getenv(EnvVar); dir != "" {
		return dir
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, appDir)
	}
	if uid := os.Getuid(); uid >= 0 {
		return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d", appDir, uid))
	}
	return filepath.Join(os.TempDir(), appDir)
}

// Ensure creates the runtime directory if it does not exist.
func Ensure() (string, error) {
	dir := Dir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime directory %s: %w", dir, err)
	}
	return dir, nil
}

// LockFile returns the lock file path used for key on platforms that lock files.
func LockFile(key string) string {
	return filepath.Join(Dir(), key+".lock")
}

// SpoolDir returns the directory secondaries drop fallback path lists into.
func SpoolDir() string {
	return filepath.Join(Dir(), "spool")
}

// DebugLog returns the default debug log location.
func DebugLog() string {
	return filepath.Join(Dir(), "debug.log")
}
