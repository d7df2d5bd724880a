package assets

import (
	"image"

	"github.com/Faultbox/landsim-viewer/internal/engine/geometry"
	"github.com/Faultbox/landsim-viewer/internal/engine/texture"
)

// Repository holds loaded values partitioned by kind and keyed by name.
// The loader fills it from a single goroutine; once returned it belongs to
// the caller.
type Repository struct {
	text       map[string]string
	images     map[string]image.Image
	textures   map[string]*texture.Texture
	geometries map[string]*geometry.Geometry
	statistics map[string]map[string]any
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{
		text:       make(map[string]string),
		images:     make(map[string]image.Image),
		textures:   make(map[string]*texture.Texture),
		geometries: make(map[string]*geometry.Geometry),
		statistics: make(map[string]map[string]any),
	}
}

// put stores a converted value under its kind.
func (r *Repository) put(kind Kind, name string, v any) {
	switch kind {
	case KindText:
		r.text[name] = v.(string)
	case KindImage:
		r.images[name] = v.(image.Image)
	case KindTexture:
		r.textures[name] = v.(*texture.Texture)
	case KindGeometry:
		r.geometries[name] = v.(*geometry.Geometry)
	case KindStatistics:
		r.statistics[name] = v.(map[string]any)
	}
}

// Text returns a text asset.
func (r *Repository) Text(name string) (string, bool) {
	v, ok := r.text[name]
	return v, ok
}

// Image returns a decoded image asset.
func (r *Repository) Image(name string) (image.Image, bool) {
	v, ok := r.images[name]
	return v, ok
}

// Texture returns a texture asset, or nil.
func (r *Repository) Texture(name string) *texture.Texture {
	return r.textures[name]
}

// Geometry returns a geometry asset, or nil.
func (r *Repository) Geometry(name string) *geometry.Geometry {
	return r.geometries[name]
}

// Statistics returns a decoded JSON statistics document.
func (r *Repository) Statistics(name string) (map[string]any, bool) {
	v, ok := r.statistics[name]
	return v, ok
}

// Len returns the number of stored assets across all kinds.
func (r *Repository) Len() int {
	return len(r.text) + len(r.images) + len(r.textures) + len(r.geometries) + len(r.statistics)
}

// Release frees the backend state of every texture and geometry.
func (r *Repository) Release() {
	for _, t := range r.textures {
		t.Release()
	}
	for _, g := range r.geometries {
		g.Release()
	}
}
