package control

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/message"
	"go.klb.dev/clippo/internal/wire"
)

// Client issues control commands to a running daemon.
type Client struct {
	Addr    string
	Timeout time.Duration
}

// NewClient returns a Client for addr with a 5 second dial timeout.
func NewClient(addr string) *Client {
	return &Client{Addr: addr, Timeout: 5 * time.Second}
}

// GetHistory fetches and decodes the daemon's current history.
func (c *Client) GetHistory(ctx context.Context) ([]entry.Entry, error) {
	b, err := c.roundTrip(ctx, message.CommandGetHistory)
	if err != nil {
		return nil, err
	}
	entries, _, err := message.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return entries, nil
}

// Reset asks the daemon to clear its history.
func (c *Client) Reset(ctx context.Context) error {
	b, err := c.roundTrip(ctx, message.CommandResetHistory)
	if err != nil {
		return err
	}
	if string(b) != message.ReplyOK {
		return fmt.Errorf("reset history: unexpected reply %q", b)
	}
	return nil
}

// Raw sends an arbitrary request and returns the raw reply.
func (c *Client) Raw(ctx context.Context, request string) ([]byte, error) {
	return c.roundTrip(ctx, message.Command(request))
}

func (c *Client) roundTrip(ctx context.Context, cmd message.Command) ([]byte, error) {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := wire.Send(conn, []byte(string(cmd)+"\n")); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	b, err := wire.ReadMessage(conn, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return b, nil
}
