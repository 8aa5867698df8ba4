package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/commons-systems/pdfmerger/internal/debug"
)

const (
	// Consecutive accept failures after which the listener is considered broken.
	maxAcceptFailures = 10

	acceptDelayMin = 5 * time.Millisecond
	acceptDelayMax = time.Second

	defaultReadTimeout    = 5 * time.Second
	defaultMaxConnections = 64
	defaultRelistenMin    = 100 * time.Millisecond
	defaultRelistenMax    = 2 * time.Second
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("channel: server closed")

// Sink receives decoded paths. Deliver is called from handler goroutines and
// must be safe for concurrent use.
type Sink interface {
	Deliver(paths []string)
}

// Stats is a snapshot of the server counters.
type Stats struct {
	Accepted     int64
	Delivered    int64
	Dropped      int64
	Relistens    int64
	ListenErrors int64
}

// Server accepts one path per connection and forwards it to a Sink.
type Server struct {
	addr   string
	sink   Sink
	listen func(addr string) (net.Listener, error)

	readTimeout  time.Duration
	maxLineBytes int
	maxConns     int64
	relistenMin  time.Duration
	relistenMax  time.Duration

	mu       sync.Mutex
	listener net.Listener

	done      chan struct{}
	closeOnce sync.Once
	ready     chan struct{}
	readyOnce sync.Once
	handlers  sync.WaitGroup

	accepted     atomic.Int64
	delivered    atomic.Int64
	dropped      atomic.Int64
	relistens    atomic.Int64
	listenErrors atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithReadTimeout bounds how long a handler waits for the path line.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithMaxLineBytes bounds the size of one message.
func WithMaxLineBytes(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLineBytes = n
		}
	}
}

// WithMaxConnections bounds the number of connections handled at once.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxConns = int64(n)
		}
	}
}

// WithRelistenBackoff sets the delay range used when the listener has to be
// re-established.
func WithRelistenBackoff(min, max time.Duration) Option {
	return func(s *Server) {
		if min > 0 {
			s.relistenMin = min
		}
		if max >= s.relistenMin {
			s.relistenMax = max
		}
	}
}

// withListenFunc replaces Listen. Tests use it to inject listener failures.
func withListenFunc(fn func(string) (net.Listener, error)) Option {
	return func(s *Server) {
		s.listen = fn
	}
}

// NewServer creates a server for addr. Nothing is opened until Serve.
func NewServer(addr string, sink Sink, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		sink:         sink,
		listen:       Listen,
		readTimeout:  defaultReadTimeout,
		maxLineBytes: DefaultMaxLineBytes,
		maxConns:     defaultMaxConnections,
		relistenMin:  defaultRelistenMin,
		relistenMax:  defaultRelistenMax,
		done:         make(chan struct{}),
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the endpoint address.
func (s *Server) Addr() string {
	return s.addr
}

// Ready is closed once the first listener is up.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted:     s.accepted.Load(),
		Delivered:    s.delivered.Load(),
		Dropped:      s.dropped.Load(),
		Relistens:    s.relistens.Load(),
		ListenErrors: s.listenErrors.Load(),
	}
}

// Serve listens and accepts until ctx is cancelled or Close is called.
// Listener failures are never fatal: the listener is closed and opened again
// after a bounded backoff. Serve waits for in-flight handlers before
// returning ErrServerClosed (after Close) or ctx.Err().
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := context.AfterFunc(ctx, s.closeListener)
	defer stop()

	sem := semaphore.NewWeighted(s.maxConns)
	backoff := s.relistenMin

	for ctx.Err() == nil {
		ln, err := s.listen(s.addr)
		if err != nil {
			s.listenErrors.Add(1)
			debug.Log("CHANNEL_LISTEN_ERROR addr=%s backoff=%v error=%v", s.addr, backoff, err)
			if !sleepCtx(ctx, backoff) {
				break
			}
			backoff = nextBackoff(backoff, s.relistenMax)
			continue
		}
		if !s.setListener(ctx, ln) {
			ln.Close()
			break
		}

		s.readyOnce.Do(func() { close(s.ready) })
		debug.Log("CHANNEL_LISTENING addr=%s", s.addr)
		backoff = s.relistenMin

		err = s.acceptLoop(ctx, ln, sem)
		s.closeListener()
		if ctx.Err() != nil {
			break
		}

		s.relistens.Add(1)
		debug.Log("CHANNEL_RELISTEN addr=%s backoff=%v error=%v", s.addr, backoff, err)
		if !sleepCtx(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, s.relistenMax)
	}

	s.handlers.Wait()
	debug.Log("CHANNEL_STOPPED addr=%s accepted=%d delivered=%d dropped=%d",
		s.addr, s.accepted.Load(), s.delivered.Load(), s.dropped.Load())

	select {
	case <-s.done:
		return ErrServerClosed
	default:
		return ctx.Err()
	}
}

// Close stops Serve. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.closeListener()
	return nil
}

func (s *Server) setListener(ctx context.Context, ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	s.listener = ln
	return true
}

func (s *Server) closeListener() {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
}

// acceptLoop returns when the listener is closed or broken.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, sem *semaphore.Weighted) error {
	var delay time.Duration
	failures := 0

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			failures++
			if failures >= maxAcceptFailures {
				return fmt.Errorf("listener broken after %d accept failures: %w", failures, err)
			}
			delay = nextBackoff(max(delay, acceptDelayMin/2), acceptDelayMax)
			debug.Log("CHANNEL_ACCEPT_ERROR failures=%d delay=%v error=%v", failures, delay, err)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			continue
		}
		failures = 0
		delay = 0
		s.accepted.Add(1)

		if err := sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return err
		}
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			defer sem.Release(1)
			s.handle(conn)
		}()
	}
}

// handle reads one path and closes the connection before delivering it.
func (s *Server) handle(conn net.Conn) {
	id := uuid.NewString()

	if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		debug.Log("CHANNEL_CONN_DEADLINE_ERROR id=%s error=%v", id, err)
	}
	path, err := DecodePath(conn, s.maxLineBytes)
	if cerr := conn.Close(); cerr != nil {
		debug.Log("CHANNEL_CONN_CLOSE_ERROR id=%s error=%v", id, cerr)
	}
	if err != nil {
		s.dropped.Add(1)
		debug.Log("CHANNEL_CONN_DROPPED id=%s error=%v", id, err)
		return
	}

	s.delivered.Add(1)
	debug.Log("CHANNEL_PATH_RECEIVED id=%s path=%s", id, path)
	s.sink.Deliver([]string{path})
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	cur *= 2
	if cur > limit {
		cur = limit
	}
	return cur
}

// sleepCtx reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
