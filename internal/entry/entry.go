// Package entry defines the value stored in clipboard history: either a
// piece of text or a raw RGBA image. Entries are compared structurally and
// are the unit moved between memory, disk, and the wire.
package entry

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// BytesPerPixel is the size of one pixel in an Image buffer (R, G, B, A).
const BytesPerPixel = 4

// Kind identifies the variant held by an Entry.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Image is a raw pixel buffer, row-major, 4 bytes per pixel.
// Len(Bytes) is expected to be Width*Height*4 but is only checked when the
// image is written back to the system clipboard.
type Image struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  []byte `json:"bytes"`
}

// Entry is one clipboard snapshot. The zero value is invalid; build entries
// with NewText or NewImage.
type Entry struct {
	kind  Kind
	text  string
	image Image
}

// NewText returns a text entry. ok is false when s is empty after trimming
// whitespace; such content is never stored. Invalid UTF-8 sequences are
// replaced with U+FFFD so the entry survives a JSON round trip unchanged.
func NewText(s string) (e Entry, ok bool) {
	if strings.TrimSpace(s) == "" {
		return Entry{}, false
	}
	return RawText(s), true
}

// RawText returns a text entry without the blank check. It is used when
// decoding history that was already stored.
func RawText(s string) Entry {
	return Entry{kind: KindText, text: strings.ToValidUTF8(s, "\uFFFD")}
}

// NewImage returns an image entry. The byte slice is retained, not copied.
func NewImage(width, height int, pix []byte) Entry {
	return Entry{kind: KindImage, image: Image{Width: width, Height: height, Bytes: pix}}
}

func (e Entry) Kind() Kind { return e.kind }

// IsZero reports whether e was never constructed.
func (e Entry) IsZero() bool { return e.kind == 0 }

// Text returns the text content and whether e is a text entry.
func (e Entry) Text() (string, bool) {
	return e.text, e.kind == KindText
}

// Image returns the image content and whether e is an image entry.
func (e Entry) Image() (Image, bool) {
	return e.image, e.kind == KindImage
}

// Equal reports structural equality: same variant and same content.
func (e Entry) Equal(o Entry) bool {
	if e.kind != o.kind {
		return false
	}
	switch e.kind {
	case KindText:
		return e.text == o.text
	case KindImage:
		return e.image.Width == o.image.Width &&
			e.image.Height == o.image.Height &&
			bytes.Equal(e.image.Bytes, o.image.Bytes)
	default:
		return true
	}
}

// Digest is a BLAKE3 hash over the variant and content. Equal entries always
// have equal digests, so a digest mismatch proves inequality.
type Digest [32]byte

// Digest computes e's content digest.
func (e Entry) Digest() Digest {
	h := blake3.New()
	_, _ = h.Write([]byte{byte(e.kind)})
	switch e.kind {
	case KindText:
		_, _ = h.Write([]byte(e.text))
	case KindImage:
		var dims [16]byte
		binary.LittleEndian.PutUint64(dims[:8], uint64(e.image.Width))
		binary.LittleEndian.PutUint64(dims[8:], uint64(e.image.Height))
		_, _ = h.Write(dims[:])
		_, _ = h.Write(e.image.Bytes)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Size returns the payload size in bytes.
func (e Entry) Size() int {
	if e.kind == KindImage {
		return len(e.image.Bytes)
	}
	return len(e.text)
}

// String is a short human-readable description, safe for logs.
func (e Entry) String() string {
	switch e.kind {
	case KindText:
		return Preview(e.text, 120)
	case KindImage:
		return fmt.Sprintf("image %dx%d (%d bytes)", e.image.Width, e.image.Height, len(e.image.Bytes))
	default:
		return "<empty>"
	}
}

// Preview truncates s to at most n bytes on a rune boundary, appending "…"
// when anything was cut.
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// tagged is the externally tagged JSON shape: exactly one of the fields is set.
type tagged struct {
	Text  *string `json:"Text,omitempty"`
	Image *Image  `json:"Image,omitempty"`
}

var errBadTag = errors.New("entry must carry exactly one of Text or Image")

// MarshalJSON encodes e as {"Text":"..."} or {"Image":{...}}.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case KindText:
		t := e.text
		return json.Marshal(tagged{Text: &t})
	case KindImage:
		img := e.image
		if img.Bytes == nil {
			img.Bytes = []byte{}
		}
		return json.Marshal(tagged{Image: &img})
	default:
		return nil, fmt.Errorf("marshal entry: %w", errBadTag)
	}
}

// UnmarshalJSON accepts only the tagged shape. A bare JSON string is rejected
// so that callers can tell the tagged and legacy encodings apart.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var t tagged
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return fmt.Errorf("unmarshal entry: %w", err)
	}
	switch {
	case t.Text != nil && t.Image == nil:
		*e = Entry{kind: KindText, text: *t.Text}
	case t.Image != nil && t.Text == nil:
		if t.Image.Width < 0 || t.Image.Height < 0 {
			return fmt.Errorf("unmarshal entry: negative image dimensions %dx%d", t.Image.Width, t.Image.Height)
		}
		*e = Entry{kind: KindImage, image: *t.Image}
	default:
		return fmt.Errorf("unmarshal entry: %w", errBadTag)
	}
	return nil
}
