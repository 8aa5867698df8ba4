// Package watcher reports new files in the spool directory using fsnotify.
package watcher

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/commons-systems/pdfmerger/internal/debug"
)

// SpoolEvent announces a spool file that is ready to be consumed.
type SpoolEvent struct {
	Path  string
	Error error // nil for normal events, non-nil for fsnotify errors
}

// SpoolWatcher watches one directory for files accepted by match.
type SpoolWatcher struct {
	dir     string
	match   func(path string) bool
	watcher *fsnotify.Watcher
	eventCh chan SpoolEvent
	done    chan struct{}
	ready   chan struct{} // closed when watch goroutine is ready
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewSpoolWatcher creates dir if needed and starts watching it. Events are
// only delivered after Start.
func NewSpoolWatcher(dir string, match func(path string) bool) (*SpoolWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to create spool directory %s: %w", dir, err)
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch spool directory %s: %w", dir, err)
	}

	if match == nil {
		match = func(string) bool { return true }
	}

	return &SpoolWatcher{
		dir:     dir,
		match:   match,
		watcher: w,
		eventCh: make(chan SpoolEvent, 100),
		done:    make(chan struct{}),
		ready:   make(chan struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *SpoolWatcher) Dir() string {
	return w.dir
}

// Start begins delivering events. Subsequent calls return the same channel.
func (w *SpoolWatcher) Start() <-chan SpoolEvent {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return w.eventCh
	}
	w.started = true
	w.mu.Unlock()

	go w.watch()
	return w.eventCh
}

// Ready is closed once the watch goroutine is running.
func (w *SpoolWatcher) Ready() <-chan struct{} {
	return w.ready
}

func (w *SpoolWatcher) watch() {
	defer close(w.eventCh)

	select {
	case <-w.ready:
	default:
		close(w.ready)
	}

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Files are published by rename, which shows up as Create.
			// Write covers writers that do not rename.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.match(event.Name) {
				continue
			}
			debug.Log("SPOOL_WATCH_EVENT op=%s file=%s", event.Op, event.Name)

			select {
			case w.eventCh <- SpoolEvent{Path: event.Name}:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.eventCh <- SpoolEvent{Error: err}:
			case <-w.done:
				return
			}
		}
	}
}

func (w *SpoolWatcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close stops the watcher and releases resources. The event channel is
// closed once the watch goroutine exits.
func (w *SpoolWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if !w.started {
		select {
		case <-w.ready:
		default:
			close(w.ready)
		}
		return w.watcher.Close()
	}

	close(w.done)
	return w.watcher.Close()
}
