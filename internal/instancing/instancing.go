// Package instancing turns occupancy maps into per-instance GPU attribute buffers.
package instancing

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/Faultbox/landsim-viewer/internal/engine/gpu"
	"github.com/Faultbox/landsim-viewer/internal/occupancy"
)

// Builder errors.
var (
	ErrDimensionMismatch = errors.New("instancing: occupancy cells do not cover width*height")
	ErrCountMismatch     = errors.New("instancing: occupied cells disagree with ValidCount")
)

// AttributeSet holds three parallel instance buffers. Slot i of every buffer
// describes the same grid cell: Offsets and UVs carry two floats per
// instance, Rotations one.
type AttributeSet struct {
	Offsets   []float32
	UVs       []float32
	Rotations []float32

	Binding gpu.Binding
}

// Len returns the number of instances.
func (a *AttributeSet) Len() int {
	return len(a.Rotations)
}

// Offset returns the grid offset of instance i, centered on the origin.
func (a *AttributeSet) Offset(i int) (x, y float32) {
	return a.Offsets[i*2], a.Offsets[i*2+1]
}

// UV returns the texture coordinate of instance i.
func (a *AttributeSet) UV(i int) (u, v float32) {
	return a.UVs[i*2], a.UVs[i*2+1]
}

// Rotation returns the yaw of instance i, in half-turns.
func (a *AttributeSet) Rotation(i int) float32 {
	return a.Rotations[i]
}

// Release frees the uploaded buffers, if any.
func (a *AttributeSet) Release() {
	a.Binding.Release()
}

// Builder fills attribute sets. It owns its random source and is not safe for
// concurrent use.
type Builder struct {
	rng *rand.Rand
}

// NewBuilder returns a builder drawing rotations from rng.
func NewBuilder(rng *rand.Rand) *Builder {
	return &Builder{rng: rng}
}

// Build allocates buffers of exactly m.ValidCount instances and fills them by
// rescanning m in row-major order, so instance i is the i-th occupied cell.
func (b *Builder) Build(m *occupancy.Map) (*AttributeSet, error) {
	w, h := m.Width, m.Height
	if w <= 0 || h <= 0 || len(m.Cells) != w*h {
		return nil, fmt.Errorf("%w: %d cells for %dx%d", ErrDimensionMismatch, len(m.Cells), w, h)
	}

	n := m.ValidCount
	set := &AttributeSet{
		Offsets:   make([]float32, n*2),
		UVs:       make([]float32, n*2),
		Rotations: make([]float32, n),
	}

	fw, fh := float32(w), float32(h)
	halfW, halfH := fw/2, fh/2

	i := 0
	for y := range h {
		for x := range w {
			if !m.Cells[x+y*w] {
				continue
			}
			if i >= n {
				return nil, fmt.Errorf("%w: more than %d occupied cells", ErrCountMismatch, n)
			}
			fx, fy := float32(x), float32(y)
			set.Offsets[i*2] = fx - halfW
			set.Offsets[i*2+1] = fy - halfH
			set.UVs[i*2] = fx / fw
			set.UVs[i*2+1] = 1 - fy/fh
			set.Rotations[i] = b.rng.Float32() * 2
			i++
		}
	}
	if i != n {
		return nil, fmt.Errorf("%w: found %d, expected %d", ErrCountMismatch, i, n)
	}
	return set, nil
}
