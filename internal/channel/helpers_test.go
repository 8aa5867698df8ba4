package channel

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testAddr returns a fresh endpoint. Socket paths are kept short because
// sun_path is limited to ~104 bytes.
func testAddr(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		return `\\.\pipe\pdfmerger-test-` + uuid.NewString()
	}
	dir, err := os.MkdirTemp("", "pdfm")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "c.sock")
}

// recordingSink collects delivered paths.
type recordingSink struct {
	mu    sync.Mutex
	paths []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (r *recordingSink) Deliver(paths []string) {
	r.mu.Lock()
	r.paths = append(r.paths, paths...)
	r.mu.Unlock()
}

func (r *recordingSink) sorted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.paths...)
	sort.Strings(out)
	return out
}

func (r *recordingSink) has(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.paths, want)
}

func (r *recordingSink) waitFor(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !r.has(want) {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for path %q, have %v", want, r.sorted())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// startServer runs srv in the background and waits for its listener.
func startServer(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}
}
