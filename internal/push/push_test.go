package push

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/message"
	"go.klb.dev/clippo/internal/wire"
)

func TestPushDelivers(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := wire.ReadMessage(conn, 0)
		got <- b
	}()

	want := []entry.Entry{entry.RawText("b"), entry.NewImage(1, 1, []byte{1, 2, 3, 4})}
	if err := New(ln.Addr().String()).Push(context.Background(), want); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case b := <-got:
		entries, _, err := message.Decode(b)
		if err != nil {
			t.Fatalf("decode pushed payload: %v", err)
		}
		if len(entries) != 2 || !entries[0].Equal(want[0]) || !entries[1].Equal(want[1]) {
			t.Errorf("pushed %v, want %v", entries, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener received nothing")
	}
}

func TestPushNoListener(t *testing.T) {
	// Reserve a port, then close it so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	err = New(addr).Push(context.Background(), nil)
	if !errors.Is(err, ErrNoListener) {
		t.Fatalf("err = %v, want ErrNoListener", err)
	}
	if errors.Is(err, ErrWriteFailed) {
		t.Error("refused connection reported as a write failure")
	}
}

// brokenConn accepts the dial but fails every write.
type brokenConn struct{ net.Conn }

func (brokenConn) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }
func (brokenConn) Close() error              { return nil }

func TestPushWriteFailure(t *testing.T) {
	var sleeps int
	p := New("127.0.0.1:1").WithSender(wire.Sender{
		Attempts: 5,
		Sleep:    func(time.Duration) { sleeps++ },
	})
	p.dial = func(context.Context, string, string) (net.Conn, error) {
		return brokenConn{}, nil
	}

	err := p.Push(context.Background(), []entry.Entry{entry.RawText("a")})
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
	if errors.Is(err, ErrNoListener) {
		t.Error("write failure reported as no listener")
	}
	if sleeps != 4 {
		t.Errorf("retried with %d sleeps, want 4", sleeps)
	}
}

func TestIsRefused(t *testing.T) {
	dialErr := func(err error) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", err)}
	}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"refused", dialErr(errRefused), true},
		{"wrapped refused", fmt.Errorf("dial: %w", dialErr(errRefused)), true},
		{"timeout", dialErr(os.ErrDeadlineExceeded), false},
		{"other", errors.New("no route to host"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRefused(tt.err); got != tt.want {
				t.Errorf("isRefused(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPushRefusedDialIsNoListener(t *testing.T) {
	p := New("127.0.0.1:7878")
	p.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connectex", errRefused)}
	}
	err := p.Push(context.Background(), nil)
	if !errors.Is(err, ErrNoListener) {
		t.Errorf("err = %v, want ErrNoListener", err)
	}
}
