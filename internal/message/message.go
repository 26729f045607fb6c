// Package message defines the clippo wire protocol.
//
// History payloads are JSON arrays. The current encoding is externally
// tagged, one object per entry:
//
//	[{"Text":"hello"},{"Image":{"width":1,"height":1,"bytes":"<base64>"}}]
//
// Installations that predate image support wrote a plain list of strings:
//
//	["hello","world"]
//
// Decoders always try the tagged shape first and fall back to the legacy
// shape, wrapping each legacy string as a text entry.
//
// Control requests are single short commands; replies are either a history
// payload or one of the literal replies below.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.klb.dev/clippo/internal/entry"
)

// Command is a control-port request.
type Command string

const (
	CommandGetHistory   Command = "GET_HISTORY"
	CommandResetHistory Command = "RESET_HISTORY"
)

// Literal control-port replies.
const (
	ReplyOK         = "OK"
	ReplyBadRequest = "BAD_REQUEST"
)

// ParseCommand trims raw and returns the command it names exactly, or ok=false.
func ParseCommand(raw []byte) (Command, bool) {
	switch c := Command(strings.TrimSpace(string(raw))); c {
	case CommandGetHistory, CommandResetHistory:
		return c, true
	default:
		return "", false
	}
}

// Format names which encoding a payload was decoded from.
type Format int

const (
	FormatTagged Format = iota
	FormatLegacy
)

func (f Format) String() string {
	if f == FormatLegacy {
		return "legacy"
	}
	return "tagged"
}

// ErrUnrecognized is returned when a payload matches neither encoding.
var ErrUnrecognized = errors.New("payload matches neither tagged nor legacy history encoding")

// Encode serialises entries in the tagged encoding. A nil slice encodes as [].
func Encode(entries []entry.Entry) ([]byte, error) {
	if entries == nil {
		entries = []entry.Entry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("history encode: %w", err)
	}
	return b, nil
}

// Decode parses a history payload, tagged shape first, legacy second.
// On failure the error wraps ErrUnrecognized and both stage errors.
func Decode(b []byte) ([]entry.Entry, Format, error) {
	entries, taggedErr := decodeTagged(b)
	if taggedErr == nil {
		return entries, FormatTagged, nil
	}
	entries, legacyErr := DecodeLegacy(b)
	if legacyErr == nil {
		return entries, FormatLegacy, nil
	}
	return nil, FormatTagged, fmt.Errorf("%w: tagged: %v; legacy: %v", ErrUnrecognized, taggedErr, legacyErr)
}

// DecodeLegacy parses the string-list encoding and wraps each string as a
// text entry, preserving order.
func DecodeLegacy(b []byte) ([]entry.Entry, error) {
	var strs []string
	if err := strictUnmarshal(b, &strs); err != nil {
		return nil, err
	}
	if strs == nil {
		return nil, errors.New("legacy history is null")
	}
	out := make([]entry.Entry, 0, len(strs))
	for _, s := range strs {
		out = append(out, entry.RawText(s))
	}
	return out, nil
}

func decodeTagged(b []byte) ([]entry.Entry, error) {
	var entries []entry.Entry
	if err := strictUnmarshal(b, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		return nil, errors.New("tagged history is null")
	}
	return entries, nil
}

// strictUnmarshal decodes exactly one JSON value and rejects trailing data.
func strictUnmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after history")
	}
	return nil
}
