// Package logging builds the slog logger shared by the clippo daemon and its
// CLI tools.
//
// Unattended, the daemon writes JSON lines to stderr so a service manager or
// log shipper can parse them. In a terminal, or with --no-background, it
// writes tinter's colored text instead and defaults to debug level.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
)

// Format selects the log output format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ErrBadOption is returned for an unrecognised --log-format or --log-level.
var ErrBadOption = errors.New("invalid logging option")

// ParseFormat maps a --log-format value to a Format. The empty string is
// FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "text", "tint", "human":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: log format %q (want auto, text or json)", ErrBadOption, s)
}

// ParseLevel maps a --log-level value to a level; the empty string yields def.
func ParseLevel(s string, def slog.Level) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return def, fmt.Errorf("%w: log level %q", ErrBadOption, s)
	}
	return l, nil
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Options are the raw logging flag values.
type Options struct {
	Format     string // auto|text|json
	Level      string // empty: info, or debug in the foreground
	Foreground bool
}

// New returns a logger writing to w.
func New(w io.Writer, o Options) (*slog.Logger, error) {
	format, err := ParseFormat(o.Format)
	if err != nil {
		return nil, err
	}
	tty := IsTTY(w)
	def := slog.LevelInfo
	if o.Foreground || tty {
		def = slog.LevelDebug
	}
	level, err := ParseLevel(o.Level, def)
	if err != nil {
		return nil, err
	}

	if format == FormatAuto {
		format = FormatJSON
		if o.Foreground || tty {
			format = FormatText
		}
	}
	var h slog.Handler
	if format == FormatText {
		h = tinter.NewHandler(w, &tinter.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    !tty,
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h), nil
}

// Setup installs New(w, o) as the slog default. Call once after flag parsing.
func Setup(w io.Writer, o Options) error {
	l, err := New(w, o)
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	return nil
}
