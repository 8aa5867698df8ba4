// Package pending holds paths that arrive before the window can take them.
package pending

import "sync"

// Buffer is an ordered, mutex-guarded list of paths. The zero value is ready
// to use.
type Buffer struct {
	mu    sync.Mutex
	paths []string
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append adds paths in order.
func (b *Buffer) Append(paths ...string) {
	if len(paths) == 0 {
		return
	}
	b.mu.Lock()
	b.paths = append(b.paths, paths...)
	b.mu.Unlock()
}

// DrainAndClear returns everything appended so far and empties the buffer.
// An Append that races with it lands entirely in this result or entirely
// in the next one.
func (b *Buffer) DrainAndClear() []string {
	b.mu.Lock()
	out := b.paths
	b.paths = nil
	b.mu.Unlock()
	return out
}

// Len returns the number of buffered paths.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.paths)
}
