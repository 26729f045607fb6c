package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/message"
)

// Client calls HistoryService.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn // owned, closed by Close
}

// Dial returns a Client for the API at target. No auth: the API only
// listens on loopback and the owner-only IPC socket.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// GetHistory fetches the current history.
func (c *Client) GetHistory(ctx context.Context) ([]entry.Entry, error) {
	out := new(httpbody.HttpBody)
	if err := c.cc.Invoke(ctx, methodGetHistory, &emptypb.Empty{}, out); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return decodeBody(out)
}

// Reset clears the history and returns the store version after the clear.
func (c *Client) Reset(ctx context.Context) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, methodResetHistory, &emptypb.Empty{}, out); err != nil {
		return 0, fmt.Errorf("reset history: %w", err)
	}
	return out.GetValue(), nil
}

// Restore writes history entry i back to the daemon's clipboard and returns
// its description.
func (c *Client) Restore(ctx context.Context, i uint32) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodRestore, wrapperspb.UInt32(i), out); err != nil {
		return "", fmt.Errorf("restore %d: %w", i, err)
	}
	return out.GetValue(), nil
}

// Watch calls fn with the current history and again after every change until
// ctx is cancelled, the server ends the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func([]entry.Entry) error) error {
	cs, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodWatch)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	stream := &grpc.GenericClientStream[emptypb.Empty, httpbody.HttpBody]{ClientStream: cs}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	for {
		body, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
		entries, err := decodeBody(body)
		if err != nil {
			return err
		}
		if err := fn(entries); err != nil {
			return err
		}
	}
}

func decodeBody(body *httpbody.HttpBody) ([]entry.Entry, error) {
	entries, _, err := message.Decode(body.GetData())
	if err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}
