// Package ipc provides the user-private local socket on which the daemon
// serves its API in addition to the loopback TCP port.
//
// CLI sub-commands (watch, restore) check for the socket first and fall back
// to the TCP API address when it is absent. On Unix the channel is a domain
// socket readable only by its owner; on Windows it is a named pipe.
package ipc

import (
	"context"
	"net"
	"os"
	"time"
)

// checkTimeout bounds the IsRunning dial.
const checkTimeout = 500 * time.Millisecond

// SocketPath returns the platform-appropriate socket path. $CLIPPO_SOCKET
// overrides it.
//
//   - Linux: $XDG_RUNTIME_DIR/clippo.sock, else $TMPDIR/clippo.sock
//   - macOS: $TMPDIR/clippo.sock
//   - Windows: \\.\pipe\clippo
func SocketPath() string {
	if s := os.Getenv("CLIPPO_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a daemon appears to be listening on the socket.
// It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	c, err := DialContext(ctx, "")
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on SocketPath.
func Listen() (net.Listener, error) {
	return listenIPC(SocketPath())
}

// DialContext connects to SocketPath. The address argument is ignored so the
// function can serve as a grpc.WithContextDialer dialer.
func DialContext(ctx context.Context, _ string) (net.Conn, error) {
	return dialIPC(ctx, SocketPath())
}
