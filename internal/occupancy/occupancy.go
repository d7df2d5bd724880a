// Package occupancy derives per-vegetation-type presence maps from a
// classification raster.
package occupancy

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/Faultbox/landsim-viewer/internal/raster"
)

// DefaultMaxStride bounds the thinning stride drawn for a placement mask.
const DefaultMaxStride = 75

// ErrDimensions is returned when raster, mask and grid sizes disagree.
var ErrDimensions = errors.New("occupancy: dimensions do not match")

// Mask marks the cells allowed to hold an instance, independent of class.
type Mask struct {
	Cells  []bool
	Stride int // thinning stride k used to build this mask
}

// Map is the occupancy of one vegetation type: Cells[i] is true where the
// type is classified and the placement mask allows an instance.
// ValidCount is the number of true cells and sizes the instance buffers.
type Map struct {
	ClassID    uint32
	Width      int
	Height     int
	Cells      []bool
	ValidCount int
}

// Engine builds masks and maps. It is not safe for concurrent use because it
// owns its random source.
type Engine struct {
	rng       *rand.Rand
	maxStride int
}

// NewEngine returns an engine drawing from rng. maxStride <= 1 selects
// DefaultMaxStride.
func NewEngine(rng *rand.Rand, maxStride int) *Engine {
	if maxStride <= 1 {
		maxStride = DefaultMaxStride
	}
	return &Engine{rng: rng, maxStride: maxStride}
}

// PlacementMask keeps cell i iff its value is non-zero and i mod k == 0,
// where k in [1, maxStride) is drawn once for the whole raster. The single
// draw makes thinning coarse: a whole study area gets one density.
func (e *Engine) PlacementMask(r *raster.Raster) Mask {
	k := e.rng.IntN(e.maxStride-1) + 1
	return MaskWithStride(r, k)
}

// MaskWithStride builds a placement mask with a fixed stride.
func MaskWithStride(r *raster.Raster, k int) Mask {
	if k < 1 {
		k = 1
	}
	cells := make([]bool, len(r.Values))
	for i, v := range r.Values {
		cells[i] = v != 0 && i%k == 0
	}
	return Mask{Cells: cells, Stride: k}
}

// Positions scans the grid row-major, top to bottom and left to right,
// marking cells whose class equals classID and which the mask allows.
// The instancing package relies on this scan order.
func Positions(classID uint32, mask Mask, r *raster.Raster, width, height int) (*Map, error) {
	n := width * height
	if width <= 0 || height <= 0 || len(r.Values) != n || len(mask.Cells) != n {
		return nil, fmt.Errorf("%w: grid %dx%d, raster %d, mask %d",
			ErrDimensions, width, height, len(r.Values), len(mask.Cells))
	}

	m := &Map{
		ClassID: classID,
		Width:   width,
		Height:  height,
		Cells:   make([]bool, n),
	}
	for y := range height {
		for x := range width {
			idx := x + y*width
			if r.Values[idx] == classID && mask.Cells[idx] {
				m.Cells[idx] = true
				m.ValidCount++
			}
		}
	}
	return m, nil
}

// Count recomputes the number of occupied cells.
func (m *Map) Count() int {
	n := 0
	for _, c := range m.Cells {
		if c {
			n++
		}
	}
	return n
}
