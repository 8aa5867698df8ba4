//go:build windows

package channel

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// Listen opens the named pipe addr (\\.\pipe\<name>).
func Listen(addr string) (net.Listener, error) {
	ln, err := winio.ListenPipe(addr, &winio.PipeConfig{
		InputBufferSize:  DefaultMaxLineBytes,
		OutputBufferSize: 512,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe listener: %w", err)
	}
	return ln, nil
}

// Dial connects to the named pipe addr.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, addr)
}
