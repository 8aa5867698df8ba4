//go:build windows

package namespace

// ChannelAddress returns the named pipe of the path channel.
func ChannelAddress() string {
	return `\\.\pipe\` + ChannelName
}
