// Package geometry parses vegetation mesh descriptions and holds indexed
// triangle geometry ready for GPU upload.
package geometry

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	jsoniter "github.com/json-iterator/go"

	"github.com/Faultbox/landsim-viewer/internal/engine/gpu"
)

// Geometry format errors.
var (
	ErrNoPositions   = errors.New("geometry: missing position attribute")
	ErrBadItemSize   = errors.New("geometry: unexpected attribute item size")
	ErrAttributeSize = errors.New("geometry: attribute length does not match vertex count")
	ErrIndexRange    = errors.New("geometry: index out of range")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Geometry is an indexed triangle list. Attributes are flat float arrays:
// 3 floats per position and normal, 2 per UV.
type Geometry struct {
	Name      string
	Positions []float32
	Normals   []float32
	UVs       []float32
	Indices   []uint32

	Binding gpu.Binding
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int {
	if len(g.Indices) > 0 {
		return len(g.Indices) / 3
	}
	return g.VertexCount() / 3
}

// Release frees the uploaded copy, if any.
func (g *Geometry) Release() {
	g.Binding.Release()
}

// bufferGeometryJSON mirrors the BufferGeometry JSON layout the asset
// pipeline exports.
type bufferGeometryJSON struct {
	Metadata struct {
		Type    string  `json:"type"`
		Version float64 `json:"version"`
	} `json:"metadata"`
	Data struct {
		Attributes map[string]attributeJSON `json:"attributes"`
		Index      *struct {
			Array []uint32 `json:"array"`
		} `json:"index"`
	} `json:"data"`
}

type attributeJSON struct {
	ItemSize int       `json:"itemSize"`
	Array    []float32 `json:"array"`
}

// Parse decodes a BufferGeometry JSON document. Missing normals are computed.
func Parse(name string, data []byte) (*Geometry, error) {
	var doc bufferGeometryJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("geometry %s: %w", name, err)
	}

	pos, ok := doc.Data.Attributes["position"]
	if !ok || len(pos.Array) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPositions, name)
	}
	if pos.ItemSize != 3 {
		return nil, fmt.Errorf("%w: position itemSize %d in %s", ErrBadItemSize, pos.ItemSize, name)
	}
	if len(pos.Array)%3 != 0 {
		return nil, fmt.Errorf("%w: position in %s", ErrAttributeSize, name)
	}

	g := &Geometry{Name: name, Positions: pos.Array}
	n := g.VertexCount()

	if doc.Data.Index != nil {
		g.Indices = doc.Data.Index.Array
		for _, idx := range g.Indices {
			if int(idx) >= n {
				return nil, fmt.Errorf("%w: %d >= %d in %s", ErrIndexRange, idx, n, name)
			}
		}
	}

	if uv, ok := doc.Data.Attributes["uv"]; ok {
		if uv.ItemSize != 2 {
			return nil, fmt.Errorf("%w: uv itemSize %d in %s", ErrBadItemSize, uv.ItemSize, name)
		}
		if len(uv.Array) != n*2 {
			return nil, fmt.Errorf("%w: uv in %s", ErrAttributeSize, name)
		}
		g.UVs = uv.Array
	} else {
		g.UVs = make([]float32, n*2)
	}

	if nrm, ok := doc.Data.Attributes["normal"]; ok {
		if nrm.ItemSize != 3 {
			return nil, fmt.Errorf("%w: normal itemSize %d in %s", ErrBadItemSize, nrm.ItemSize, name)
		}
		if len(nrm.Array) != n*3 {
			return nil, fmt.Errorf("%w: normal in %s", ErrAttributeSize, name)
		}
		g.Normals = nrm.Array
	} else {
		g.Normals = ComputeNormals(g.Positions, g.Indices)
	}

	return g, nil
}

// ComputeNormals returns smooth per-vertex normals: each triangle's
// area-weighted face normal is accumulated on its three vertices.
// A nil index list means consecutive vertex triples form triangles.
func ComputeNormals(positions []float32, indices []uint32) []float32 {
	n := len(positions) / 3
	acc := make([]mgl32.Vec3, n)

	vertex := func(i uint32) mgl32.Vec3 {
		return mgl32.Vec3{positions[i*3], positions[i*3+1], positions[i*3+2]}
	}
	face := func(a, b, c uint32) {
		pa, pb, pc := vertex(a), vertex(b), vertex(c)
		fn := pc.Sub(pb).Cross(pa.Sub(pb))
		acc[a] = acc[a].Add(fn)
		acc[b] = acc[b].Add(fn)
		acc[c] = acc[c].Add(fn)
	}

	if len(indices) > 0 {
		for i := 0; i+2 < len(indices); i += 3 {
			face(indices[i], indices[i+1], indices[i+2])
		}
	} else {
		for i := uint32(0); int(i)+2 < n; i += 3 {
			face(i, i+1, i+2)
		}
	}

	out := make([]float32, n*3)
	for i, v := range acc {
		if v.Len() < 1e-8 {
			v = mgl32.Vec3{0, 1, 0}
		} else {
			v = v.Normalize()
		}
		out[i*3], out[i*3+1], out[i*3+2] = v[0], v[1], v[2]
	}
	return out
}
