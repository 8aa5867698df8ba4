package channel

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Defaults(t *testing.T) {
	c := NewClient("addr")
	assert.Equal(t, DefaultAttempts, c.attempts)
	assert.Equal(t, DefaultRetryDelay, c.retryDelay)
	assert.Equal(t, DefaultDialTimeout, c.dialTimeout)
	assert.Equal(t, 12*time.Second, c.Budget())
}

// A primary that starts listening after a few failed attempts still gets the path.
func TestClient_SucceedsWhenListenerComesUpLate(t *testing.T) {
	addr := testAddr(t)
	sink := newRecordingSink()
	srv := NewServer(addr, sink)

	var attempts atomic.Int32
	started := make(chan struct{})
	dial := func(ctx context.Context, a string) (net.Conn, error) {
		if attempts.Add(1) == 3 {
			startServer(t, srv)
			close(started)
		}
		return Dial(ctx, a)
	}

	c := NewClient(addr,
		WithAttempts(20),
		WithRetryDelay(10*time.Millisecond),
		withDialFunc(dial))

	require.NoError(t, c.Send(context.Background(), "/tmp/late.pdf"))
	<-started
	sink.waitFor(t, "/tmp/late.pdf")
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_GivesUpAfterBudget(t *testing.T) {
	var attempts atomic.Int32
	dial := func(ctx context.Context, a string) (net.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	}

	c := NewClient("nowhere",
		WithAttempts(5),
		WithRetryDelay(time.Millisecond),
		withDialFunc(dial))

	err := c.Send(context.Background(), "/tmp/a.pdf")
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, int32(5), attempts.Load())
}

func TestClient_StopsOnContextCancel(t *testing.T) {
	dial := func(ctx context.Context, a string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	c := NewClient("nowhere",
		WithAttempts(1000),
		WithRetryDelay(10*time.Millisecond),
		withDialFunc(dial))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Send(ctx, "/tmp/a.pdf")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_RejectsUnsendablePaths(t *testing.T) {
	var attempts atomic.Int32
	dial := func(ctx context.Context, a string) (net.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("unused")
	}
	c := NewClient("nowhere", withDialFunc(dial))

	assert.ErrorIs(t, c.Send(context.Background(), " \"\" "), ErrEmptyPath)
	assert.Zero(t, attempts.Load())
}

func TestClient_SendPaths(t *testing.T) {
	addr := testAddr(t)
	sink := newRecordingSink()
	startServer(t, NewServer(addr, sink))

	c := NewClient(addr, WithRetryDelay(10*time.Millisecond))
	sent, failed := c.SendPaths(context.Background(), []string{"/tmp/a.pdf", "", "  ", "/tmp/b.pdf"})
	assert.Equal(t, 2, sent)
	assert.Empty(t, failed)

	sink.waitFor(t, "/tmp/a.pdf")
	sink.waitFor(t, "/tmp/b.pdf")
}

func TestClient_SendPathsWithoutPrimary(t *testing.T) {
	c := NewClient(testAddr(t),
		WithAttempts(2),
		WithRetryDelay(time.Millisecond),
		WithDialTimeout(20*time.Millisecond))

	sent, failed := c.SendPaths(context.Background(), []string{"/tmp/a.pdf", " ", "/tmp/b.pdf"})
	assert.Zero(t, sent)
	assert.Equal(t, []string{"/tmp/a.pdf", "/tmp/b.pdf"}, failed)
}
