// Package clip provides access to the system clipboard. Build constraints
// select the implementation:
//
//	clip_system.go   — macOS, Linux, Windows via golang.design/x/clipboard
//	clip_other.go    — everything else, headless stub
//	clip_headless.go — no-op backend, also used when no display is available
//
// Images cross this boundary as raw RGBA buffers (4 bytes per pixel); the
// platform clipboard exchanges PNG, so backends convert in both directions.
package clip

import (
	"errors"
	"fmt"
	"math"

	"go.klb.dev/clippo/internal/entry"
)

// Backend is the interface that all clipboard implementations satisfy.
// Implementations serialise their own access to the clipboard.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard content as an entry. Text is
	// preferred; blank text falls through to an image. ok is false, with a
	// nil error, when neither is available.
	Read() (e entry.Entry, ok bool, err error)

	// Write puts e on the clipboard. Images are validated first.
	Write(e entry.Entry) error

	// Close releases any resources held by the backend.
	Close()
}

// ErrInvalidImage is returned when an image entry cannot be written back
// because its buffer does not match its dimensions.
var ErrInvalidImage = errors.New("invalid image entry")

// ValidateImage checks that img's buffer holds exactly Width*Height RGBA
// pixels and that both dimensions are positive.
func ValidateImage(img entry.Image) error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, img.Width, img.Height)
	}
	if img.Width > math.MaxInt/entry.BytesPerPixel/img.Height {
		return fmt.Errorf("%w: dimensions %dx%d overflow", ErrInvalidImage, img.Width, img.Height)
	}
	want := img.Width * img.Height * entry.BytesPerPixel
	if len(img.Bytes) != want {
		return fmt.Errorf("%w: %dx%d needs %d bytes, have %d",
			ErrInvalidImage, img.Width, img.Height, want, len(img.Bytes))
	}
	return nil
}
