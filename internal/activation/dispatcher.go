// Package activation funnels every source of incoming paths (launch
// arguments, the path channel and the spool) into the window's ingestion
// point.
package activation

import (
	"errors"
	"sync"

	"github.com/commons-systems/pdfmerger/internal/debug"
	"github.com/commons-systems/pdfmerger/internal/pending"
	"github.com/commons-systems/pdfmerger/internal/sanitize"
)

// Shell is the part of the window the dispatcher depends on.
type Shell interface {
	// IsWindowReady reports whether the window has been constructed.
	IsWindowReady() bool
	// EnqueueOnUI runs fn on the UI execution context. It must not block.
	EnqueueOnUI(fn func())
	// IngestPaths adds paths to the working set. UI context only.
	IngestPaths(paths []string)
}

var (
	// ErrAlreadyReady is returned by a second MarkReady.
	ErrAlreadyReady = errors.New("dispatcher already marked ready")
	// ErrWindowNotReady is returned when MarkReady is given a shell whose
	// window does not exist yet.
	ErrWindowNotReady = errors.New("window not ready")
	// ErrNilShell is returned when MarkReady is given no shell.
	ErrNilShell = errors.New("nil shell")
)

// Dispatcher has two states. Before MarkReady every delivery is buffered;
// afterwards deliveries are marshaled onto the UI context. The transition
// happens once.
type Dispatcher struct {
	buf *pending.Buffer

	mu    sync.Mutex
	shell Shell
}

// NewDispatcher creates a dispatcher in the not-ready state. A nil buf gets a
// fresh buffer.
func NewDispatcher(buf *pending.Buffer) *Dispatcher {
	if buf == nil {
		buf = pending.New()
	}
	return &Dispatcher{buf: buf}
}

// Deliver accepts paths from any goroutine. Blank entries are dropped.
func (d *Dispatcher) Deliver(paths []string) {
	clean := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = sanitize.Path(p); p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return
	}

	// The buffer append happens under d.mu so it cannot interleave with the
	// drain in MarkReady.
	d.mu.Lock()
	shell := d.shell
	if shell == nil {
		d.buf.Append(clean...)
		d.mu.Unlock()
		debug.Log("DISPATCH_BUFFERED count=%d", len(clean))
		return
	}
	d.mu.Unlock()

	debug.Log("DISPATCH_DIRECT count=%d", len(clean))
	shell.EnqueueOnUI(func() {
		shell.IngestPaths(clean)
	})
}

// MarkReady flips the dispatcher to the ready state and ingests everything
// buffered so far. It must be called on the UI context, once.
func (d *Dispatcher) MarkReady(shell Shell) error {
	if shell == nil {
		return ErrNilShell
	}
	if !shell.IsWindowReady() {
		return ErrWindowNotReady
	}

	d.mu.Lock()
	if d.shell != nil {
		d.mu.Unlock()
		return ErrAlreadyReady
	}
	d.shell = shell
	buffered := d.buf.DrainAndClear()
	d.mu.Unlock()

	debug.Log("DISPATCH_READY buffered=%d", len(buffered))
	if len(buffered) > 0 {
		shell.IngestPaths(buffered)
	}
	return nil
}

// IsReady reports whether MarkReady has succeeded.
func (d *Dispatcher) IsReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shell != nil
}

// Pending returns the number of buffered paths.
func (d *Dispatcher) Pending() int {
	return d.buf.Len()
}
