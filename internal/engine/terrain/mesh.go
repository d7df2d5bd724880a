package terrain

import (
	"fmt"

	"github.com/Faultbox/landsim-viewer/internal/engine/geometry"
	"github.com/Faultbox/landsim-viewer/internal/engine/material"
	"github.com/Faultbox/landsim-viewer/internal/engine/texture"
)

// BuildGrid creates a Width x Height vertex plane spanning Width x Height world
// units, lying in the XZ plane centered on the origin (north edge at -Z), with
// vertex i raised by Heights[i]*DispScale. Normals are computed after
// displacement so lighting follows the displaced slope.
func BuildGrid(p Params) (*Mesh, error) {
	w, h := p.Width, p.Height
	if w < 2 || h < 2 {
		return nil, fmt.Errorf("%w: %dx%d", ErrGridTooSmall, w, h)
	}
	if len(p.Heights) != w*h {
		return nil, fmt.Errorf("%w: %d heights for %dx%d", ErrHeightCount, len(p.Heights), w, h)
	}

	segX := float32(w) / float32(w-1)
	segZ := float32(h) / float32(h-1)
	halfW, halfH := float32(w)/2, float32(h)/2

	bounds := Bounds{
		Min: [3]float32{1e10, 1e10, 1e10},
		Max: [3]float32{-1e10, -1e10, -1e10},
	}

	positions := make([]float32, 0, w*h*3)
	vertices := make([]Vertex, w*h)
	for row := range h {
		for col := range w {
			i := col + row*w
			pos := [3]float32{
				float32(col)*segX - halfW,
				p.Heights[i] * p.DispScale,
				float32(row)*segZ - halfH,
			}
			vertices[i] = Vertex{
				Position: pos,
				TexCoord: [2]float32{float32(col) / float32(w-1), 1 - float32(row)/float32(h-1)},
			}
			positions = append(positions, pos[0], pos[1], pos[2])
			updateBounds(&bounds, pos)
		}
	}

	// Two triangles per cell, wound counter-clockwise seen from above.
	indices := make([]uint32, 0, (w-1)*(h-1)*6)
	for row := 0; row < h-1; row++ {
		for col := 0; col < w-1; col++ {
			a := uint32(col + row*w)
			b := uint32(col + (row+1)*w)
			c := uint32(col + 1 + (row+1)*w)
			d := uint32(col + 1 + row*w)
			indices = append(indices, a, b, d, b, c, d)
		}
	}

	normals := geometry.ComputeNormals(positions, indices)
	for i := range vertices {
		vertices[i].Normal = [3]float32{normals[i*3], normals[i*3+1], normals[i*3+2]}
	}

	return &Mesh{
		Width:    w,
		Height:   h,
		Vertices: vertices,
		Indices:  indices,
		Bounds:   bounds,
	}, nil
}

// BuildRealism builds the textured terrain, blending up to
// material.MaxBlendTextures textures under one directional light.
func BuildRealism(p Params, textures []*texture.Texture) (*Mesh, error) {
	if len(textures) > material.MaxBlendTextures {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyTextures, len(textures), material.MaxBlendTextures)
	}
	mesh, err := BuildGrid(p)
	if err != nil {
		return nil, err
	}
	mesh.Material = material.NewRealism(textures)
	return mesh, nil
}

// BuildDataView builds the classification-colored terrain: unlit,
// double-sided, sampling classes directly.
func BuildDataView(p Params, classes *texture.Texture) (*Mesh, error) {
	if classes == nil {
		return nil, ErrNoClasses
	}
	mesh, err := BuildGrid(p)
	if err != nil {
		return nil, err
	}
	mesh.Material = material.NewData(classes)
	return mesh, nil
}

func updateBounds(b *Bounds, p [3]float32) {
	for i := range 3 {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}
