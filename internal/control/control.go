// Package control serves the loopback command port used by the presentation
// process to read or reset the history.
//
// Each connection carries one short command and gets one reply:
//
//	GET_HISTORY    → encoded history, then the write side is closed
//	RESET_HISTORY  → history cleared, history file removed, "OK"
//	anything else  → "BAD_REQUEST"
//
// Connections are handled one at a time. A connection that fails (bad read,
// poisoned store, failed write) counts towards a consecutive-failure budget;
// when the budget is spent Serve returns ErrExhausted to its owner instead of
// spinning in a broken state.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"go.klb.dev/clippo/internal/history"
	"go.klb.dev/clippo/internal/message"
	"go.klb.dev/clippo/internal/wire"
)

const (
	// DefaultAddr is the control port address.
	DefaultAddr = "127.0.0.1:7879"

	// MaxFailures is the number of consecutive failed connections after
	// which the listener gives up.
	MaxFailures = 5

	// FailureDelay is the pause after a failed connection.
	FailureDelay = 500 * time.Millisecond

	// maxCommandSize bounds the single read of a command.
	maxCommandSize = 512
)

// ErrExhausted is returned by Serve after MaxFailures consecutive failures.
var ErrExhausted = errors.New("control listener exceeded consecutive failure limit")

// Remover deletes the persisted history. version is the store version after
// the clear.
type Remover interface {
	Remove(version uint64) error
}

// Listener answers control commands against a history store.
type Listener struct {
	store   *history.Store
	remover Remover
	sender  wire.Sender

	maxFailures  int
	failureDelay time.Duration
	sleep        func(time.Duration)
}

// New returns a Listener for store. remover is called on RESET_HISTORY.
func New(store *history.Store, remover Remover) *Listener {
	return &Listener{
		store:        store,
		remover:      remover,
		sender:       wire.DefaultSender,
		maxFailures:  MaxFailures,
		failureDelay: FailureDelay,
		sleep:        time.Sleep,
	}
}

// Serve accepts connections on ln until ctx is cancelled (returns nil), ln
// fails after cancellation, or the failure budget is exhausted (returns an
// error wrapping ErrExhausted). ln is closed when Serve returns.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	slog.Info("control listener accepting", "addr", ln.Addr())

	failures := 0
	for {
		err := l.acceptOne(ln)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			failures = 0
			continue
		}

		failures++
		slog.Error("control request failed",
			"err", err,
			"consecutive_failures", failures,
			"limit", l.maxFailures,
		)
		if failures >= l.maxFailures {
			return fmt.Errorf("%w (%d): last error: %w", ErrExhausted, failures, err)
		}
		l.sleep(l.failureDelay)
	}
}

func (l *Listener) acceptOne(ln net.Listener) error {
	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()
	return l.Handle(conn)
}

// Handle reads one command from conn and writes the reply.
func (l *Listener) Handle(conn net.Conn) error {
	log := slog.With("remote", conn.RemoteAddr())

	buf := make([]byte, maxCommandSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read request: %w", err)
	}

	cmd, ok := message.ParseCommand(buf[:n])
	if !ok {
		log.Warn("unexpected request, replying BAD_REQUEST", "request", string(buf[:min(n, 64)]))
		return l.reply(conn, []byte(message.ReplyBadRequest))
	}

	switch cmd {
	case message.CommandGetHistory:
		snap, err := l.store.Snapshot()
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		payload, err := message.Encode(snap.Entries)
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		if err := l.sender.Send(conn, payload); err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		log.Info("GET_HISTORY served", "entries", len(snap.Entries))
		return nil

	case message.CommandResetHistory:
		version, err := l.store.Clear()
		if err != nil {
			return fmt.Errorf("reset history: %w", err)
		}
		if err := l.remover.Remove(version); err != nil {
			return fmt.Errorf("reset history: %w", err)
		}
		log.Info("RESET_HISTORY served, history cleared")
		return l.reply(conn, []byte(message.ReplyOK))
	}
	return nil
}

func (l *Listener) reply(conn net.Conn, b []byte) error {
	if _, err := conn.Write(b); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
