//go:build darwin || linux || windows

package clip

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.design/x/clipboard"

	"go.klb.dev/clippo/internal/entry"
)

type systemBackend struct {
	mu sync.Mutex
}

// New returns the platform clipboard backend, or a headless no-op backend if
// the display environment is unavailable (e.g. a headless server without X11
// or Wayland). clipboard.Init is called here rather than in init() so that
// CLI sub-commands that never construct a Backend don't trigger the warning.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return headlessBackend{}
	}
	return &systemBackend{}
}

func (b *systemBackend) Name() string { return runtime.GOOS + " clipboard (golang.design)" }

func (b *systemBackend) Read() (entry.Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if text := clipboard.Read(clipboard.FmtText); text != nil {
		if e, ok := entry.NewText(string(text)); ok {
			return e, true, nil
		}
	}

	data := clipboard.Read(clipboard.FmtImage)
	if data == nil {
		return entry.Entry{}, false, nil
	}
	img, err := DecodePNG(data)
	if err != nil {
		return entry.Entry{}, false, err
	}
	return entry.NewImage(img.Width, img.Height, img.Bytes), true, nil
}

func (b *systemBackend) Write(e entry.Entry) error {
	var (
		format clipboard.Format
		data   []byte
	)
	switch e.Kind() {
	case entry.KindText:
		txt, _ := e.Text()
		format, data = clipboard.FmtText, []byte(txt)
	case entry.KindImage:
		img, _ := e.Image()
		png, err := EncodePNG(img)
		if err != nil {
			return err
		}
		format, data = clipboard.FmtImage, png
	default:
		return fmt.Errorf("unsupported entry kind: %s", e.Kind())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	clipboard.Write(format, data)
	return nil
}

func (b *systemBackend) Close() {}
