package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/commons-systems/pdfmerger/internal/debug"
)

// Client defaults. One undeliverable path costs at most
// DefaultAttempts * (DefaultDialTimeout + DefaultRetryDelay).
const (
	DefaultAttempts    = 20
	DefaultRetryDelay  = 100 * time.Millisecond
	DefaultDialTimeout = 500 * time.Millisecond
)

// ErrDeliveryFailed is returned by Send when every attempt failed.
var ErrDeliveryFailed = errors.New("path delivery failed")

// Client sends paths to a primary instance. Each path travels on its own
// connection and is retried independently.
type Client struct {
	addr        string
	attempts    int
	retryDelay  time.Duration
	dialTimeout time.Duration
	dial        func(ctx context.Context, addr string) (net.Conn, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAttempts sets how many times each path is tried.
func WithAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithDialTimeout bounds a single connection attempt.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

func withDialFunc(fn func(context.Context, string) (net.Conn, error)) ClientOption {
	return func(c *Client) {
		c.dial = fn
	}
}

// NewClient creates a client for addr.
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{
		addr:        addr,
		attempts:    DefaultAttempts,
		retryDelay:  DefaultRetryDelay,
		dialTimeout: DefaultDialTimeout,
		dial:        Dial,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Budget is the worst-case time spent on one undeliverable path.
func (c *Client) Budget() time.Duration {
	return time.Duration(c.attempts) * (c.dialTimeout + c.retryDelay)
}

// SendPaths sends every path in order. It returns how many were delivered
// and the paths that were not. Blank paths are skipped and count as neither.
func (c *Client) SendPaths(ctx context.Context, paths []string) (int, []string) {
	sent := 0
	var failed []string
	for _, p := range paths {
		if CleanPath(p) == "" {
			continue
		}
		if err := c.Send(ctx, p); err != nil {
			debug.Log("CLIENT_SEND_GAVE_UP path=%s error=%v", p, err)
			failed = append(failed, p)
			continue
		}
		sent++
	}
	return sent, failed
}

// Send delivers one path, retrying while the primary is not yet listening.
func (c *Client) Send(ctx context.Context, path string) error {
	path = CleanPath(path)
	if path == "" {
		return ErrEmptyPath
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("send cancelled: %w", err)
		}

		lastErr = c.sendOnce(ctx, path)
		if lastErr == nil {
			debug.Log("CLIENT_SENT path=%s attempt=%d", path, attempt)
			return nil
		}
		if errors.Is(lastErr, ErrMalformed) {
			return lastErr
		}

		if attempt < c.attempts {
			debug.Log("CLIENT_SEND_RETRY attempt=%d/%d delay=%v error=%v",
				attempt, c.attempts, c.retryDelay, lastErr)
			if !sleepCtx(ctx, c.retryDelay) {
				return fmt.Errorf("send cancelled during retry delay: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrDeliveryFailed, c.attempts, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, path string) error {
	dctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, err := c.dial(dctx, c.addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.dialTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	return EncodePath(conn, path)
}
