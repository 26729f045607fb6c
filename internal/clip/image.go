package clip

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"go.klb.dev/clippo/internal/entry"
)

// DecodePNG converts PNG data from the platform clipboard into a raw,
// non-premultiplied RGBA entry image.
func DecodePNG(data []byte) (entry.Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return entry.Image{}, fmt.Errorf("decode clipboard png: %w", err)
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		// Copy rows as-is; draw.Draw would premultiply and lose the colour
		// of fully transparent pixels.
		row := b.Dx() * entry.BytesPerPixel
		for y := 0; y < b.Dy(); y++ {
			off := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:], n.Pix[off:off+row])
		}
	} else {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}
	return entry.Image{Width: b.Dx(), Height: b.Dy(), Bytes: dst.Pix}, nil
}

// EncodePNG validates img and encodes it as PNG for the platform clipboard.
func EncodePNG(img entry.Image) ([]byte, error) {
	if err := ValidateImage(img); err != nil {
		return nil, err
	}
	nrgba := &image.NRGBA{
		Pix:    img.Bytes,
		Stride: img.Width * entry.BytesPerPixel,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, fmt.Errorf("encode clipboard png: %w", err)
	}
	return buf.Bytes(), nil
}
