//go:build !windows

package channel

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Listen opens the path channel endpoint at addr. A socket file left behind
// by a crashed primary is removed first; only the lock holder listens, so
// nobody else can be using it.
func Listen(addr string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(addr), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}
	ln, err := net.Listen("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket listener: %w", err)
	}
	return ln, nil
}

// Dial connects to the path channel endpoint at addr.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", addr)
}
