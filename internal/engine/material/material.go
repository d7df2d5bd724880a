// Package material describes how terrain and vegetation surfaces are shaded.
// Materials reference textures but do not own them; textures belong to the
// asset repository they were loaded into.
package material

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/landsim-viewer/internal/engine/gpu"
	"github.com/Faultbox/landsim-viewer/internal/engine/texture"
)

// MaxBlendTextures is the number of texture slots the realism terrain shader blends.
const MaxBlendTextures = 5

// Lighting coefficients for the realism terrain.
const (
	RealismAmbient   = 0.3
	RealismDiffuse   = 0.7
	RealismSpecular  = 0.1
	RealismShininess = 8.0
)

// SunDirection is the directional light shared by terrain and vegetation.
var SunDirection = mgl32.Vec3{0.5, 0.866, 0}.Normalize()

// Kind identifies the shading model.
type Kind int

const (
	KindRealism Kind = iota
	KindData
	KindVegetation
)

// String returns a short name for logging.
func (k Kind) String() string {
	switch k {
	case KindRealism:
		return "realism"
	case KindData:
		return "data"
	case KindVegetation:
		return "vegetation"
	default:
		return "unknown"
	}
}

// Material is implemented by every shading model.
type Material interface {
	Kind() Kind
	// Release frees the backend program state bound to this material.
	Release()
}

// Realism blends up to five terrain textures under one directional light.
type Realism struct {
	Textures  []*texture.Texture
	Ambient   float32
	Diffuse   float32
	Specular  float32
	Shininess float32
	LightDir  mgl32.Vec3

	Binding gpu.Binding
}

// NewRealism returns a realism material with the fixed lighting coefficients.
func NewRealism(textures []*texture.Texture) *Realism {
	return &Realism{
		Textures:  textures,
		Ambient:   RealismAmbient,
		Diffuse:   RealismDiffuse,
		Specular:  RealismSpecular,
		Shininess: RealismShininess,
		LightDir:  SunDirection,
	}
}

// Kind implements Material.
func (m *Realism) Kind() Kind { return KindRealism }

// Release implements Material.
func (m *Realism) Release() { m.Binding.Release() }

// Data samples a classification texture directly: unlit and double-sided.
type Data struct {
	Classes     *texture.Texture
	DoubleSided bool
	Unlit       bool

	Binding gpu.Binding
}

// NewData returns a data-view material showing classes.
func NewData(classes *texture.Texture) *Data {
	return &Data{Classes: classes, DoubleSided: true, Unlit: true}
}

// Kind implements Material.
func (m *Data) Kind() Kind { return KindData }

// Release implements Material.
func (m *Data) Release() { m.Binding.Release() }

// SetClasses swaps the classification texture.
func (m *Data) SetClasses(t *texture.Texture) {
	if m.Classes == t {
		return
	}
	m.Classes = t
	m.Binding.Invalidate()
}

// Vegetation shades instanced vegetation. Instances read their height from the
// packed elevation texture at their UV, so vegetation follows the terrain
// without CPU-side height lookups.
type Vegetation struct {
	// Texture is the asset-group texture used by the realism view.
	Texture *texture.Texture
	// Classes is the time-varying state-class texture used by the data view.
	Classes   *texture.Texture
	Elevation *texture.Texture
	DispScale float32
	// ShowClasses selects the data-view shading.
	ShowClasses bool

	Binding gpu.Binding
}

// Kind implements Material.
func (m *Vegetation) Kind() Kind { return KindVegetation }

// Release implements Material.
func (m *Vegetation) Release() { m.Binding.Release() }

// SetClasses swaps the state-class texture.
func (m *Vegetation) SetClasses(t *texture.Texture) {
	if m.Classes == t {
		return
	}
	m.Classes = t
	m.Binding.Invalidate()
}
