// Package push delivers history snapshots to the presentation process.
//
// The presentation process, when running, listens on a fixed loopback port.
// Each push is one connection: dial, write the encoded history, half-close.
// A refused connection means nobody is listening, which is the normal idle
// state and is reported as ErrNoListener without retrying.
package push

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/message"
	"go.klb.dev/clippo/internal/wire"
)

// DefaultAddr is the presentation process's listening address.
const DefaultAddr = "127.0.0.1:7878"

const dialTimeout = 2 * time.Second

var (
	// ErrNoListener means the push port refused the connection.
	ErrNoListener = errors.New("no presentation process listening")
	// ErrWriteFailed means the connection was made but the history could
	// not be written within the retry budget.
	ErrWriteFailed = errors.New("history push failed")
)

// Pusher sends history snapshots to a fixed address.
type Pusher struct {
	addr   string
	dial   func(ctx context.Context, network, addr string) (net.Conn, error)
	sender wire.Sender
}

// New returns a Pusher for addr using wire.DefaultSender's retry budget.
func New(addr string) *Pusher {
	d := &net.Dialer{Timeout: dialTimeout}
	return &Pusher{
		addr:   addr,
		dial:   d.DialContext,
		sender: wire.DefaultSender,
	}
}

// WithSender returns a copy of p that writes with s.
func (p *Pusher) WithSender(s wire.Sender) *Pusher {
	cp := *p
	cp.sender = s
	return &cp
}

// Addr returns the push target.
func (p *Pusher) Addr() string { return p.addr }

// Push encodes entries and streams them to the presentation process.
// Dialing is attempted once; only the write is retried.
func (p *Pusher) Push(ctx context.Context, entries []entry.Entry) error {
	payload, err := message.Encode(entries)
	if err != nil {
		return err
	}

	conn, err := p.dial(ctx, "tcp", p.addr)
	if err != nil {
		if isRefused(err) {
			return fmt.Errorf("%w at %s", ErrNoListener, p.addr)
		}
		return fmt.Errorf("dial %s: %w", p.addr, err)
	}
	defer conn.Close()

	if err := p.sender.Send(conn, payload); err != nil {
		return fmt.Errorf("%w to %s: %w", ErrWriteFailed, p.addr, err)
	}
	return nil
}

// isRefused reports whether a dial error means the port had no listener.
func isRefused(err error) bool {
	return errors.Is(err, errRefused)
}
