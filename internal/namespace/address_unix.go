//go:build !windows

package namespace

import "path/filepath"

// ChannelAddress returns the Unix socket path of the path channel.
func ChannelAddress() string {
	return filepath.Join(Dir(), ChannelName+".sock")
}
