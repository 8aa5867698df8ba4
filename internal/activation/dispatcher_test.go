package activation

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commons-systems/pdfmerger/internal/pending"
)

// fakeShell runs enqueued closures on whichever goroutine calls runQueued,
// standing in for the UI context.
type fakeShell struct {
	ready atomic.Bool
	tasks chan func()

	mu       sync.Mutex
	ingested []string
	batches  int
}

func newFakeShell() *fakeShell {
	s := &fakeShell{tasks: make(chan func(), 4096)}
	s.ready.Store(true)
	return s
}

func (s *fakeShell) IsWindowReady() bool   { return s.ready.Load() }
func (s *fakeShell) EnqueueOnUI(fn func()) { s.tasks <- fn }

func (s *fakeShell) IngestPaths(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingested = append(s.ingested, paths...)
	s.batches++
}

func (s *fakeShell) runQueued() {
	for {
		select {
		case fn := <-s.tasks:
			fn()
		default:
			return
		}
	}
}

func (s *fakeShell) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.ingested...)
	return out
}

func TestDispatcher_BuffersUntilReady(t *testing.T) {
	d := NewDispatcher(nil)
	d.Deliver([]string{"/tmp/a.pdf"})
	d.Deliver([]string{"", "  ", "/tmp/b.pdf"})

	assert.False(t, d.IsReady())
	assert.Equal(t, 2, d.Pending())

	shell := newFakeShell()
	require.NoError(t, d.MarkReady(shell))

	assert.True(t, d.IsReady())
	assert.Zero(t, d.Pending())
	assert.Equal(t, []string{"/tmp/a.pdf", "/tmp/b.pdf"}, shell.snapshot())
	assert.Equal(t, 1, shell.batches)
}

func TestDispatcher_DirectAfterReadyGoesThroughUIQueue(t *testing.T) {
	d := NewDispatcher(pending.New())
	shell := newFakeShell()
	require.NoError(t, d.MarkReady(shell))

	d.Deliver([]string{"/tmp/c.pdf"})

	// Nothing touches UI state until the UI context runs the task.
	assert.Empty(t, shell.snapshot())
	assert.Zero(t, d.Pending())

	shell.runQueued()
	assert.Equal(t, []string{"/tmp/c.pdf"}, shell.snapshot())
}

func TestDispatcher_BlankDeliveryIsIgnored(t *testing.T) {
	d := NewDispatcher(nil)
	shell := newFakeShell()
	require.NoError(t, d.MarkReady(shell))

	d.Deliver(nil)
	d.Deliver([]string{"", " \"\" "})

	assert.Empty(t, shell.tasks)
}

func TestDispatcher_MarkReadyErrors(t *testing.T) {
	d := NewDispatcher(nil)

	assert.ErrorIs(t, d.MarkReady(nil), ErrNilShell)

	notReady := newFakeShell()
	notReady.ready.Store(false)
	assert.ErrorIs(t, d.MarkReady(notReady), ErrWindowNotReady)
	assert.False(t, d.IsReady())

	shell := newFakeShell()
	require.NoError(t, d.MarkReady(shell))
	assert.ErrorIs(t, d.MarkReady(shell), ErrAlreadyReady)
}

// Deliveries racing the ready transition are ingested exactly once.
func TestDispatcher_RaceWithMarkReady(t *testing.T) {
	for round := 0; round < 20; round++ {
		d := NewDispatcher(nil)
		shell := newFakeShell()

		const writers, perWriter = 8, 100
		start := make(chan struct{})
		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				<-start
				for i := 0; i < perWriter; i++ {
					d.Deliver([]string{fmt.Sprintf("/tmp/%d-%d.pdf", w, i)})
				}
			}(w)
		}

		close(start)
		require.NoError(t, d.MarkReady(shell))
		wg.Wait()
		shell.runQueued()

		got := shell.snapshot()
		require.Len(t, got, writers*perWriter, "round %d", round)
		sort.Strings(got)
		for i := 1; i < len(got); i++ {
			if got[i] == got[i-1] {
				t.Fatalf("round %d: %s ingested twice", round, got[i])
			}
		}
		assert.Zero(t, d.Pending())
	}
}
