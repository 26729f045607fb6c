// Package persist stores the clipboard history in a single file.
//
// The file holds exactly the tagged encoding from package message. Loading
// also accepts the legacy string-list encoding; such files are rewritten in
// the tagged encoding on the next Save. A missing or unreadable file loads as
// an empty history so the daemon always starts.
package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.klb.dev/clippo/internal/entry"
	"go.klb.dev/clippo/internal/history"
	"go.klb.dev/clippo/internal/message"
)

// DefaultFileName is the history file name inside the user's home directory.
const DefaultFileName = ".clipboard_history.json"

// Source describes where Load found its entries.
type Source int

const (
	SourceEmpty Source = iota // no file, empty file, or unparseable file
	SourceTagged
	SourceLegacy
)

func (s Source) String() string {
	switch s {
	case SourceTagged:
		return "tagged"
	case SourceLegacy:
		return "legacy"
	default:
		return "empty"
	}
}

// DefaultPath returns $HOME/.clipboard_history.json, or the file name
// relative to the working directory when no home directory is known.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, DefaultFileName)
	}
	return DefaultFileName
}

// File is the on-disk history. Writes are ordered by snapshot version: a
// Save or Remove carrying an older version than the last one applied is
// skipped, so a slow writer can never put back history that was reset.
type File struct {
	path string

	mu      sync.Mutex
	applied uint64
	wrote   bool
}

// New returns a File at path. Nothing is read or written.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Load reads the history. It never fails: errors are logged and yield an
// empty history with SourceEmpty.
func (f *File) Load() ([]entry.Entry, Source) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("no history file, starting empty", "path", f.path)
		} else {
			slog.Warn("could not read history file, starting empty", "path", f.path, "err", err)
		}
		return []entry.Entry{}, SourceEmpty
	}

	entries, format, err := message.Decode(b)
	if err != nil {
		slog.Warn("could not parse history file, starting empty", "path", f.path, "err", err)
		return []entry.Entry{}, SourceEmpty
	}
	if format == message.FormatLegacy {
		slog.Warn("loaded legacy string-only history; it will be migrated on next save",
			"path", f.path,
			"entries", len(entries),
		)
		return entries, SourceLegacy
	}
	slog.Info("history loaded", "path", f.path, "entries", len(entries))
	return entries, SourceTagged
}

// Save writes snap in the tagged encoding, replacing the file atomically.
// Snapshots older than the last applied Save or Remove are ignored.
// Failures are returned, not retried.
func (f *File) Save(snap history.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.wrote && snap.Version < f.applied {
		slog.Debug("skipping stale history save", "version", snap.Version, "applied", f.applied)
		return nil
	}

	b, err := message.Encode(snap.Entries)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	if err := writeAtomic(f.path, b); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	f.applied, f.wrote = snap.Version, true
	return nil
}

// Remove deletes the file. A missing file is not an error. version is the
// store version after the clear that prompted the removal.
func (f *File) Remove(version uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.wrote && version < f.applied {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove history file: %w", err)
	}
	f.applied, f.wrote = version, true
	return nil
}

// writeAtomic writes b to a temporary file next to path and renames it into
// place, so readers see either the old or the new content in full.
func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	tmpName = ""
	return nil
}
