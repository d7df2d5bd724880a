// Package texture provides image decoding and texture processing utilities.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration

	_ "golang.org/x/image/bmp" // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration

	"github.com/Faultbox/landsim-viewer/internal/engine/gpu"
)

// ErrEmptyImage is returned for zero-sized images.
var ErrEmptyImage = errors.New("texture: empty image")

// Texture is an RGBA image kept on the CPU until a renderer uploads it.
// Pix holds non-premultiplied RGBA bytes, row-major, top row first.
type Texture struct {
	Name   string
	Width  int
	Height int
	Pix    []byte

	Binding gpu.Binding
}

// Decode decodes PNG, JPEG, GIF, BMP, TIFF or WebP data into a texture.
func Decode(name string, data []byte) (*Texture, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return FromImage(name, img)
}

// FromImage draws img onto an offscreen NRGBA surface and wraps the pixels.
// Drawing (rather than reading img.At) keeps the exact channel bytes the image
// was authored with, which packed-integer rasters depend on.
func FromImage(name string, img image.Image) (*Texture, error) {
	nrgba := ToNRGBA(img)
	b := nrgba.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyImage, name)
	}
	return &Texture{
		Name:   name,
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    nrgba.Pix,
	}, nil
}

// ToNRGBA returns img as a tightly packed *image.NRGBA anchored at (0,0).
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Image returns the texture as an image backed by the same pixels.
func (t *Texture) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    t.Pix,
		Stride: 4 * t.Width,
		Rect:   image.Rect(0, 0, t.Width, t.Height),
	}
}

// Release frees the uploaded copy, if any.
func (t *Texture) Release() {
	t.Binding.Release()
}
