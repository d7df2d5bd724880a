// Package terrain builds displaced heightfield meshes for study areas.
package terrain

import (
	"errors"

	"github.com/Faultbox/landsim-viewer/internal/engine/gpu"
	"github.com/Faultbox/landsim-viewer/internal/engine/material"
)

// Build errors.
var (
	ErrGridTooSmall    = errors.New("terrain: grid needs at least 2x2 vertices")
	ErrHeightCount     = errors.New("terrain: height count does not match grid")
	ErrTooManyTextures = errors.New("terrain: too many blend textures")
	ErrNoClasses       = errors.New("terrain: data view needs a classification texture")
)

// Params describes the heightfield. Heights holds one value per grid vertex,
// row-major with row 0 at the top (north) edge of the source image.
type Params struct {
	Width     int
	Height    int
	Heights   []float32
	DispScale float32
}

// Vertex represents a terrain mesh vertex.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Mesh holds terrain geometry ready for GPU upload plus the material it is
// drawn with.
type Mesh struct {
	Width    int
	Height   int
	Vertices []Vertex
	Indices  []uint32
	Bounds   Bounds
	Material material.Material

	Binding gpu.Binding
}

// Bounds holds the axis-aligned bounding box of the terrain.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Center returns the middle of the box.
func (b Bounds) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Release frees the uploaded buffers and the material's backend state.
func (m *Mesh) Release() {
	m.Binding.Release()
	if m.Material != nil {
		m.Material.Release()
	}
}
