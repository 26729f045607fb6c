// Package wire handles the framing used on both loopback sockets.
//
// There is no length prefix: a sender writes one message and half-closes its
// write side, and the receiver reads until EOF.
//
//	client ──"GET_HISTORY"──▶ daemon
//	client ◀──<history>+FIN── daemon
package wire

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

const (
	// MaxMessageSize is the largest message we will read (256 MiB). A full
	// history of large screenshots is big; anything past this is a bug.
	MaxMessageSize = 256 * 1024 * 1024

	// SendAttempts and RetryDelay bound Send's write retries.
	SendAttempts = 5
	RetryDelay   = 500 * time.Millisecond
)

// ErrTooLarge is returned by ReadMessage when the peer sends more than the limit.
var ErrTooLarge = errors.New("message too large")

// closeWriter is implemented by *net.TCPConn and *net.UnixConn.
type closeWriter interface {
	CloseWrite() error
}

// Sender writes a complete message to a connection, retrying failed writes.
type Sender struct {
	Attempts int
	Delay    time.Duration
	// Sleep is time.Sleep unless a test replaces it.
	Sleep func(time.Duration)
}

// DefaultSender retries SendAttempts times, RetryDelay apart.
var DefaultSender = Sender{Attempts: SendAttempts, Delay: RetryDelay}

// Send writes payload to conn and half-closes the write side.
func Send(conn net.Conn, payload []byte) error {
	return DefaultSender.Send(conn, payload)
}

// Send writes payload to conn then closes conn's write side. If a write or
// the half-close fails the remainder is retried up to s.Attempts times.
// Bytes already accepted by the kernel are never re-sent.
func (s Sender) Send(conn net.Conn, payload []byte) error {
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	remaining := payload
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = writeAndClose(conn, &remaining)
		if lastErr == nil {
			return nil
		}
		slog.Debug("send attempt failed",
			"attempt", attempt,
			"of", attempts,
			"remaining_bytes", len(remaining),
			"err", lastErr,
		)
		if attempt < attempts {
			sleep(s.Delay)
		}
	}
	return fmt.Errorf("send failed after %d attempts: %w", attempts, lastErr)
}

func writeAndClose(conn net.Conn, remaining *[]byte) error {
	for len(*remaining) > 0 {
		n, err := conn.Write(*remaining)
		*remaining = (*remaining)[n:]
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	if cw, ok := conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			return fmt.Errorf("close write: %w", err)
		}
	}
	return nil
}

// ReadMessage reads from r until EOF. It fails with ErrTooLarge if more than
// limit bytes arrive; limit <= 0 means MaxMessageSize.
func ReadMessage(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxMessageSize
	}
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w (over %d bytes)", ErrTooLarge, limit)
	}
	return b, nil
}
