package clip

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"go.klb.dev/clippo/internal/entry"
)

func TestPNGRoundTrip(t *testing.T) {
	img := entry.Image{
		Width:  2,
		Height: 2,
		Bytes: []byte{
			255, 0, 0, 255, 0, 255, 0, 128,
			0, 0, 255, 255, 10, 20, 30, 0,
		},
	}
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	got, err := DecodePNG(data)
	if err != nil {
		t.Fatalf("DecodePNG: %v", err)
	}
	if got.Width != 2 || got.Height != 2 {
		t.Errorf("dimensions %dx%d", got.Width, got.Height)
	}
	if !bytes.Equal(got.Bytes, img.Bytes) {
		t.Errorf("pixels changed:\n got %v\nwant %v", got.Bytes, img.Bytes)
	}
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name string
		img  entry.Image
		ok   bool
	}{
		{"exact", entry.Image{Width: 2, Height: 1, Bytes: make([]byte, 8)}, true},
		{"short buffer", entry.Image{Width: 2, Height: 1, Bytes: make([]byte, 7)}, false},
		{"long buffer", entry.Image{Width: 2, Height: 1, Bytes: make([]byte, 9)}, false},
		{"zero width", entry.Image{Width: 0, Height: 1}, false},
		{"size overflows int", entry.Image{Width: math.MaxInt / 8, Height: 16}, false},
		{"size overflows after pixel width", entry.Image{Width: math.MaxInt / 2, Height: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.img)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidImage) {
				t.Errorf("err = %v, want ErrInvalidImage", err)
			}
		})
	}
}

func TestEncodePNGRejectsInvalid(t *testing.T) {
	_, err := EncodePNG(entry.Image{Width: 3, Height: 3, Bytes: []byte{1}})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("err = %v, want ErrInvalidImage", err)
	}
}

func TestEncodePNGRejectsOverflowingSize(t *testing.T) {
	if uint64(math.MaxInt) < 1<<62 {
		t.Skip("needs 64-bit int")
	}
	// Width*Height*4 wraps to 0, matching an empty buffer.
	side := 1
	side <<= 31
	img := entry.Image{Width: side, Height: side}
	if _, err := EncodePNG(img); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("err = %v, want ErrInvalidImage", err)
	}
}

func TestDecodePNGGarbage(t *testing.T) {
	if _, err := DecodePNG([]byte("not a png")); err == nil {
		t.Fatal("expected error")
	}
}

func TestHeadless(t *testing.T) {
	var b Backend = headlessBackend{}
	if _, ok, err := b.Read(); ok || err != nil {
		t.Errorf("Read = %v, %v", ok, err)
	}
	if err := b.Write(entry.RawText("x")); err != nil {
		t.Errorf("Write: %v", err)
	}
}
