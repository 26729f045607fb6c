package main

import (
	"bytes"
	"strings"
	"testing"

	"go.klb.dev/clippo/internal/entry"
)

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, []entry.Entry{
		entry.RawText("line one\nline two"),
		entry.NewImage(2, 1, make([]byte, 8)),
	})
	out := buf.String()
	for _, want := range []string{"KIND", "line one line two", "image 2x1 (8 bytes)", "8B"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "\n"); got != 3 {
		t.Errorf("got %d lines, want header + 2", got)
	}
}

func TestPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	if buf.String() != "History is empty.\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestOneLineTruncatesOnRunes(t *testing.T) {
	s := strings.Repeat("é", 70)
	got := oneLine(entry.RawText(s))
	if got != strings.Repeat("é", 60)+"…" {
		t.Errorf("oneLine = %q", got)
	}
}

func TestFmtSize(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0B"},
		{1023, "1023B"},
		{1536, "1.5K"},
		{3 * 1024 * 1024, "3.0M"},
	}
	for _, tt := range tests {
		if got := fmtSize(tt.n); got != tt.want {
			t.Errorf("fmtSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
