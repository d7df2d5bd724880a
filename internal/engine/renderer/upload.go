package renderer

import (
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/landsim-viewer/internal/engine/geometry"
	"github.com/Faultbox/landsim-viewer/internal/engine/scene"
	"github.com/Faultbox/landsim-viewer/internal/engine/terrain"
	"github.com/Faultbox/landsim-viewer/internal/engine/texture"
)

// Vertex attribute locations shared by every program.
const (
	locPosition = 0
	locNormal   = 1
	locTexCoord = 2
	locOffset   = 3
	locCell     = 4
	locRotation = 5
)

// geometryStride is position + normal + uv floats per interleaved vertex.
const geometryStride = 8

type filter int

const (
	// filterRepeat is for imagery: mipmapped and tiled.
	filterRepeat filter = iota
	// filterNearest is for packed-integer rasters, which must not be interpolated.
	filterNearest
)

type textureRes struct{ id uint32 }

func (t *textureRes) Release() { gl.DeleteTextures(1, &t.id) }

type meshRes struct {
	vao, vbo, ebo uint32
	count         int32
}

func (m *meshRes) Release() {
	gl.DeleteVertexArrays(1, &m.vao)
	gl.DeleteBuffers(1, &m.vbo)
	gl.DeleteBuffers(1, &m.ebo)
}

type geometryRes struct {
	vbo, ebo uint32
	count    int32
	indexed  bool
}

func (g *geometryRes) Release() {
	gl.DeleteBuffers(1, &g.vbo)
	if g.indexed {
		gl.DeleteBuffers(1, &g.ebo)
	}
}

// instanceRes is the VAO of one instanced draw: the shared geometry buffers
// plus three per-instance attribute buffers.
type instanceRes struct {
	vao   uint32
	bufs  [3]uint32
	geom  *geometryRes
	count int32
}

func (i *instanceRes) Release() {
	gl.DeleteVertexArrays(1, &i.vao)
	gl.DeleteBuffers(3, &i.bufs[0])
}

func bindTexture(unit uint32, t *texture.Texture, f filter) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	if t == nil {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		return
	}
	res, ok := t.Binding.Bound().(*textureRes)
	if !ok {
		res = uploadTexture(t, f)
		t.Binding.Bind(res)
	}
	gl.BindTexture(gl.TEXTURE_2D, res.id)
}

func uploadTexture(t *texture.Texture, f filter) *textureRes {
	res := &textureRes{}
	gl.GenTextures(1, &res.id)
	gl.BindTexture(gl.TEXTURE_2D, res.id)

	// Rows go up top-first, so texture row 0 is the image's top row.
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(t.Width), int32(t.Height),
		0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&t.Pix[0]))

	switch f {
	case filterNearest:
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	default:
		gl.GenerateMipmap(gl.TEXTURE_2D)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	}
	return res
}

func uploadMesh(m *terrain.Mesh) *meshRes {
	if res, ok := m.Binding.Bound().(*meshRes); ok {
		return res
	}
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return nil
	}

	res := &meshRes{count: int32(len(m.Indices))}
	gl.GenVertexArrays(1, &res.vao)
	gl.BindVertexArray(res.vao)

	gl.GenBuffers(1, &res.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, res.vbo)
	vertexSize := int(unsafe.Sizeof(terrain.Vertex{}))
	gl.BufferData(gl.ARRAY_BUFFER, len(m.Vertices)*vertexSize, unsafe.Pointer(&m.Vertices[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointerWithOffset(locPosition, 3, gl.FLOAT, false, int32(vertexSize), 0)
	gl.EnableVertexAttribArray(locPosition)
	gl.VertexAttribPointerWithOffset(locNormal, 3, gl.FLOAT, false, int32(vertexSize), 3*4)
	gl.EnableVertexAttribArray(locNormal)
	gl.VertexAttribPointerWithOffset(locTexCoord, 2, gl.FLOAT, false, int32(vertexSize), 6*4)
	gl.EnableVertexAttribArray(locTexCoord)

	gl.GenBuffers(1, &res.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, res.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, unsafe.Pointer(&m.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	m.Binding.Bind(res)
	return res
}

func uploadGeometry(g *geometry.Geometry) *geometryRes {
	if res, ok := g.Binding.Bound().(*geometryRes); ok {
		return res
	}
	data := interleave(g)
	if len(data) == 0 {
		return nil
	}

	res := &geometryRes{count: int32(g.VertexCount())}
	gl.GenBuffers(1, &res.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, res.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), gl.STATIC_DRAW)

	if len(g.Indices) > 0 {
		res.indexed = true
		res.count = int32(len(g.Indices))
		gl.GenBuffers(1, &res.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, res.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(g.Indices)*4, unsafe.Pointer(&g.Indices[0]), gl.STATIC_DRAW)
	}
	g.Binding.Bind(res)
	return res
}

// uploadVegetation builds the VAO for an instanced draw. Realism and data
// nodes share the attribute set, so they share the VAO too.
func uploadVegetation(v *scene.Vegetation) *instanceRes {
	if res, ok := v.Instances.Binding.Bound().(*instanceRes); ok && res.geom == v.Geometry.Binding.Bound() {
		return res
	}
	geom := uploadGeometry(v.Geometry)
	if geom == nil {
		return nil
	}

	res := &instanceRes{geom: geom, count: geom.count}
	gl.GenVertexArrays(1, &res.vao)
	gl.BindVertexArray(res.vao)

	stride := int32(geometryStride * 4)
	gl.BindBuffer(gl.ARRAY_BUFFER, geom.vbo)
	gl.VertexAttribPointerWithOffset(locPosition, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(locPosition)
	gl.VertexAttribPointerWithOffset(locNormal, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(locNormal)
	gl.VertexAttribPointerWithOffset(locTexCoord, 2, gl.FLOAT, false, stride, 6*4)
	gl.EnableVertexAttribArray(locTexCoord)
	if geom.indexed {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, geom.ebo)
	}

	a := v.Instances
	gl.GenBuffers(3, &res.bufs[0])
	instanceAttrib(res.bufs[0], locOffset, 2, a.Offsets)
	instanceAttrib(res.bufs[1], locCell, 2, a.UVs)
	instanceAttrib(res.bufs[2], locRotation, 1, a.Rotations)

	gl.BindVertexArray(0)
	a.Binding.Bind(res)
	return res
}

// instanceAttrib uploads data and advances the attribute once per instance.
func instanceAttrib(buf uint32, loc uint32, size int32, data []float32) {
	gl.BindBuffer(gl.ARRAY_BUFFER, buf)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointerWithOffset(loc, size, gl.FLOAT, false, 0, 0)
	gl.EnableVertexAttribArray(loc)
	gl.VertexAttribDivisor(loc, 1)
}

// interleave packs position, normal and uv per vertex.
func interleave(g *geometry.Geometry) []float32 {
	n := g.VertexCount()
	if n == 0 {
		return nil
	}
	out := make([]float32, 0, n*geometryStride)
	for i := range n {
		out = append(out, g.Positions[i*3:i*3+3]...)
		if len(g.Normals) >= (i+1)*3 {
			out = append(out, g.Normals[i*3:i*3+3]...)
		} else {
			out = append(out, 0, 1, 0)
		}
		if len(g.UVs) >= (i+1)*2 {
			out = append(out, g.UVs[i*2:i*2+2]...)
		} else {
			out = append(out, 0, 0)
		}
	}
	return out
}
