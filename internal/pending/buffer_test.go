package pending

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_PreservesOrder(t *testing.T) {
	var b Buffer
	b.Append("a")
	b.Append("b", "c")
	b.Append()

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []string{"a", "b", "c"}, b.DrainAndClear())
	assert.Zero(t, b.Len())
	assert.Empty(t, b.DrainAndClear())
}

func TestBuffer_DrainedSliceIsNotReused(t *testing.T) {
	b := New()
	b.Append("a")
	first := b.DrainAndClear()
	b.Append("b")

	assert.Equal(t, []string{"a"}, first)
	assert.Equal(t, []string{"b"}, b.DrainAndClear())
}

// Concurrent appenders racing repeated drains: every entry is seen exactly once.
func TestBuffer_ConcurrentAppendAndDrain(t *testing.T) {
	const (
		writers   = 16
		perWriter = 500
	)
	b := New()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Append(fmt.Sprintf("%d/%d", w, i))
			}
		}(w)
	}

	seen := make(map[string]int)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	collect := func() {
		for _, p := range b.DrainAndClear() {
			seen[p]++
		}
	}
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			collect()
		}
	}
	collect()

	require.Len(t, seen, writers*perWriter)
	for p, n := range seen {
		if n != 1 {
			t.Fatalf("path %s seen %d times", p, n)
		}
	}
}
