// Package raster decodes classification and height data packed into image pixels.
//
// Each pixel carries a 24-bit value with R as the low byte, G as the middle
// byte and B as the high byte. Classification rasters ignore alpha; heightmaps
// add alpha and subtract 255 as a calibration offset.
package raster

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/Faultbox/landsim-viewer/internal/engine/texture"
)

// MaxValue is one past the largest encodable value.
const MaxValue = 1 << 24

// ErrDimensions is returned when values do not cover width*height cells.
var ErrDimensions = errors.New("raster: value count does not match dimensions")

// Raster is a dense classification grid, row-major, one value per pixel.
// It is read-only after creation.
type Raster struct {
	Width  int
	Height int
	Values []uint32
}

// Decode unpacks interleaved RGBA bytes into one value per pixel.
// A trailing partial pixel is dropped.
func Decode(pix []byte) []uint32 {
	n := len(pix) / 4
	out := make([]uint32, n)
	for i := range n {
		idx := i * 4
		out[i] = uint32(pix[idx]) | uint32(pix[idx+1])<<8 | uint32(pix[idx+2])<<16
	}
	return out
}

// DecodeHeights unpacks a heightmap: packed 24-bit value plus alpha minus 255.
func DecodeHeights(pix []byte) []float32 {
	n := len(pix) / 4
	out := make([]float32, n)
	for i := range n {
		idx := i * 4
		packed := uint32(pix[idx]) | uint32(pix[idx+1])<<8 | uint32(pix[idx+2])<<16
		out[i] = float32(packed) + float32(pix[idx+3]) - 255
	}
	return out
}

// Encode packs v into RGBA bytes with an opaque alpha. Values above 24 bits
// are truncated.
func Encode(v uint32) [4]byte {
	return [4]byte{byte(v), byte(v >> 8), byte(v >> 16), 255}
}

// New wraps values, checking they cover the grid exactly.
func New(width, height int, values []uint32) (*Raster, error) {
	if width <= 0 || height <= 0 || len(values) != width*height {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrDimensions, len(values), width, height)
	}
	return &Raster{Width: width, Height: height, Values: values}, nil
}

// FromImage draws img onto an offscreen surface and decodes it.
func FromImage(img image.Image) (*Raster, error) {
	nrgba := texture.ToNRGBA(img)
	b := nrgba.Bounds()
	return New(b.Dx(), b.Dy(), Decode(nrgba.Pix))
}

// FromTexture decodes an already loaded texture.
func FromTexture(t *texture.Texture) (*Raster, error) {
	return New(t.Width, t.Height, Decode(t.Pix))
}

// HeightsFromTexture decodes a heightmap texture into one height per pixel.
func HeightsFromTexture(t *texture.Texture) ([]float32, error) {
	if len(t.Pix) != t.Width*t.Height*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d heightmap", ErrDimensions, len(t.Pix), t.Width, t.Height)
	}
	return DecodeHeights(t.Pix), nil
}

// Len returns the number of cells.
func (r *Raster) Len() int {
	return len(r.Values)
}

// At returns the value at (x, y), or 0 outside the grid.
func (r *Raster) At(x, y int) uint32 {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return 0
	}
	return r.Values[x+y*r.Width]
}

// ClassCount is one entry of a histogram.
type ClassCount struct {
	Class uint32
	Cells int
}

// Histogram counts cells per class, most common first (ties by class id).
func (r *Raster) Histogram() []ClassCount {
	counts := make(map[uint32]int)
	for _, v := range r.Values {
		counts[v]++
	}
	out := make([]ClassCount, 0, len(counts))
	for class, cells := range counts {
		out = append(out, ClassCount{Class: class, Cells: cells})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cells != out[j].Cells {
			return out[i].Cells > out[j].Cells
		}
		return out[i].Class < out[j].Class
	})
	return out
}
