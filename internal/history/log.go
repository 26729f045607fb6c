package history

import (
	"context"
	"log/slog"

	"go.klb.dev/clippo/internal/entry"
)

// LogEntry logs a history event at INFO (kind, size, history length) and
// DEBUG (text preview up to 120 chars, or image dimensions).
func LogEntry(event string, e entry.Entry, length int) {
	slog.Info(event, "kind", e.Kind(), "size_bytes", e.Size(), "history_len", length)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	if txt, ok := e.Text(); ok {
		slog.Debug("history entry", "kind", e.Kind(), "preview", entry.Preview(txt, 120))
	} else if img, ok := e.Image(); ok {
		slog.Debug("history entry", "kind", e.Kind(), "width", img.Width, "height", img.Height)
	}
}
