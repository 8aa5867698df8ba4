package ui

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// uiTaskMsg carries a closure onto the bubbletea event loop.
type uiTaskMsg struct {
	fn func()
}

// Shell adapts the bubbletea program to activation.Shell. Closures passed
// to EnqueueOnUI run inside Update, which is the program's only goroutine
// touching model state.
type Shell struct {
	ready    atomic.Bool
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
	ingest   func(paths []string)
}

func newShell(ingest func([]string)) *Shell {
	return &Shell{
		tasks:  make(chan func()),
		done:   make(chan struct{}),
		ingest: ingest,
	}
}

// IsWindowReady reports whether the program has initialised the model.
func (s *Shell) IsWindowReady() bool {
	return s.ready.Load()
}

// EnqueueOnUI schedules fn on the event loop without blocking the caller.
// Tasks enqueued after the program stopped are dropped.
func (s *Shell) EnqueueOnUI(fn func()) {
	go func() {
		select {
		case s.tasks <- fn:
		case <-s.done:
		}
	}()
}

// IngestPaths adds paths to the working set. Event loop only.
func (s *Shell) IngestPaths(paths []string) {
	s.ingest(paths)
}

// Stop drops pending and future tasks. Safe to call more than once.
func (s *Shell) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// waitForTask blocks until a task is enqueued and hands it to Update.
func (s *Shell) waitForTask() tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-s.tasks:
			return uiTaskMsg{fn: fn}
		case <-s.done:
			return nil
		}
	}
}
