package clip

import "go.klb.dev/clippo/internal/entry"

// headlessBackend is a no-op clipboard backend for environments without a
// display server (headless Linux servers, containers, etc.).
// It never has content and silently discards writes.
type headlessBackend struct{}

func (headlessBackend) Name() string                     { return "headless (no-op)" }
func (headlessBackend) Read() (entry.Entry, bool, error) { return entry.Entry{}, false, nil }
func (headlessBackend) Write(_ entry.Entry) error        { return nil }
func (headlessBackend) Close()                           {}
