// Package monitor polls the system clipboard and records new content in the
// shared history.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.klb.dev/clippo/internal/clip"
	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/history"
	"go.klb.dev/clippo/internal/push"
)

// DefaultInterval is the delay between clipboard samples.
const DefaultInterval = 800 * time.Millisecond

// Pusher delivers a history snapshot to the presentation process.
type Pusher interface {
	Push(ctx context.Context, entries []entry.Entry) error
}

// Saver persists a history snapshot.
type Saver interface {
	Save(snap history.Snapshot) error
}

// Outcome describes what a single tick did.
type Outcome int

const (
	Idle      Outcome = iota // nothing on the clipboard
	Unchanged                // content already in history
	Recorded                 // new entry inserted
	Failed                   // read or store error, tick skipped
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return "idle"
	case Unchanged:
		return "unchanged"
	case Recorded:
		return "recorded"
	default:
		return "failed"
	}
}

// Monitor samples the clipboard at a fixed interval.
type Monitor struct {
	backend  clip.Backend
	store    *history.Store
	pusher   Pusher
	saver    Saver
	interval time.Duration
}

// New creates a monitor. interval <= 0 means DefaultInterval.
func New(backend clip.Backend, store *history.Store, pusher Pusher, saver Saver, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		backend:  backend,
		store:    store,
		pusher:   pusher,
		saver:    saver,
		interval: interval,
	}
}

// Run polls until ctx is cancelled. Errors in a tick are logged and never
// stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("clipboard monitor started",
		"backend", m.backend.Name(),
		"interval", m.interval,
	)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		m.Tick(ctx)
		select {
		case <-ctx.Done():
			slog.Info("clipboard monitor stopped")
			return
		case <-t.C:
		}
	}
}

// Tick performs one sample: read, insert, and on a real insertion push and
// persist the new snapshot. The store lock is not held during push or save.
func (m *Monitor) Tick(ctx context.Context) Outcome {
	e, ok, err := m.backend.Read()
	if err != nil {
		slog.Error("clipboard read failed", "err", err)
		return Failed
	}
	if !ok {
		return Idle
	}

	snap, inserted, err := m.store.Record(e)
	if err != nil {
		slog.Error("history insert failed", "err", err)
		return Failed
	}
	if !inserted {
		return Unchanged
	}
	history.LogEntry("clipboard entry recorded", e, len(snap.Entries))

	if err := m.pusher.Push(ctx, snap.Entries); err != nil {
		if errors.Is(err, push.ErrNoListener) {
			slog.Debug("presentation process not listening")
		} else {
			slog.Warn("history push failed", "err", err)
		}
	} else {
		slog.Info("history pushed", "entries", len(snap.Entries))
	}

	if err := m.saver.Save(snap); err != nil {
		slog.Error("history save failed", "err", err)
	}
	return Recorded
}
