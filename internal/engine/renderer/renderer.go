// Package renderer draws the study-area scene graph with OpenGL 4.1.
//
// Scene data is uploaded lazily the first time a node is drawn, and the GL
// objects are attached to the data's gpu.Binding so tearing the scene down
// frees them immediately.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/landsim-viewer/internal/engine/camera"
	"github.com/Faultbox/landsim-viewer/internal/engine/material"
	"github.com/Faultbox/landsim-viewer/internal/engine/scene"
	"github.com/Faultbox/landsim-viewer/internal/engine/shader"
	"github.com/Faultbox/landsim-viewer/internal/engine/terrain"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
	// Present is called after each frame, usually to swap buffers.
	Present func()
}

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config Config
	log    *zap.Logger
	camera *camera.OrbitCamera

	terrainRealism *shader.Program
	terrainData    *shader.Program
	vegetation     *shader.Program

	// fitted is the terrain mesh the camera was last fitted to.
	fitted *terrain.Mesh
	frames int
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config, cam *camera.OrbitCamera, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{config: cfg, log: log, camera: cam}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))

	var err error
	if r.terrainRealism, err = shader.Compile("terrain realism", terrainVertexShader, terrainRealismFragmentShader); err != nil {
		return nil, err
	}
	if r.terrainData, err = shader.Compile("terrain data", terrainVertexShader, terrainDataFragmentShader); err != nil {
		r.Close()
		return nil, err
	}
	if r.vegetation, err = shader.Compile("vegetation", vegetationVertexShader, vegetationFragmentShader); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Close frees the shader programs. Scene resources are freed by the scene.
func (r *Renderer) Close() {
	r.log.Info("closing renderer", zap.Int("frames", r.frames))
	for _, p := range []*shader.Program{r.terrainRealism, r.terrainData, r.vegetation} {
		if p != nil {
			p.Delete()
		}
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

func (r *Renderer) aspect() float32 {
	if r.config.Height == 0 {
		return 1
	}
	return float32(r.config.Width) / float32(r.config.Height)
}

// Render draws one frame of g and presents it.
func (r *Renderer) Render(g *scene.Graph) {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	list := collect(g)
	if len(list.terrain) > 0 && list.terrain[0] != r.fitted {
		r.fitted = list.terrain[0]
		r.camera.FitToBounds(r.fitted.Bounds.Min, r.fitted.Bounds.Max)
	}

	viewProj := r.camera.ViewProjection(r.aspect())
	for _, m := range list.terrain {
		r.drawTerrain(m, viewProj)
	}
	for _, v := range list.vegetation {
		r.drawVegetation(v, viewProj)
	}

	r.frames++
	if r.config.Present != nil {
		r.config.Present()
	}
}

func (r *Renderer) drawTerrain(m *terrain.Mesh, viewProj mgl32.Mat4) {
	res := uploadMesh(m)
	if res == nil {
		return
	}

	switch mat := m.Material.(type) {
	case *material.Realism:
		p := r.terrainRealism
		p.Use()
		p.SetMat4("uViewProj", viewProj)
		p.SetVec3("uLightDir", mat.LightDir)
		p.SetVec3("uCameraPos", r.camera.Position())
		p.SetFloat("uAmbient", mat.Ambient)
		p.SetFloat("uDiffuse", mat.Diffuse)
		p.SetFloat("uSpecular", mat.Specular)
		p.SetFloat("uShininess", mat.Shininess)
		p.SetFloat("uMinHeight", m.Bounds.Min[1])
		p.SetFloat("uMaxHeight", m.Bounds.Max[1])
		p.SetFloat("uTiling", float32(max(m.Width, m.Height))/16)
		p.SetInt("uTextureCount", int32(len(mat.Textures)))
		for i, t := range mat.Textures {
			bindTexture(uint32(i), t, filterRepeat)
			p.SetInt(fmt.Sprintf("uTextures[%d]", i), int32(i))
		}
		gl.Enable(gl.CULL_FACE)
	case *material.Data:
		p := r.terrainData
		p.Use()
		p.SetMat4("uViewProj", viewProj)
		bindTexture(0, mat.Classes, filterNearest)
		p.SetInt("uClasses", 0)
		if mat.DoubleSided {
			gl.Disable(gl.CULL_FACE)
		}
	default:
		return
	}

	gl.BindVertexArray(res.vao)
	gl.DrawElements(gl.TRIANGLES, res.count, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
	gl.Disable(gl.CULL_FACE)
}

func (r *Renderer) drawVegetation(v *scene.Vegetation, viewProj mgl32.Mat4) {
	if v.Instances.Len() == 0 || v.Material == nil {
		return
	}
	res := uploadVegetation(v)
	if res == nil {
		return
	}
	mat := v.Material

	p := r.vegetation
	p.Use()
	p.SetMat4("uViewProj", viewProj)
	p.SetFloat("uDispScale", mat.DispScale)
	p.SetVec3("uLightDir", material.SunDirection)
	bindTexture(0, mat.Texture, filterRepeat)
	p.SetInt("uTexture", 0)
	bindTexture(1, mat.Classes, filterNearest)
	p.SetInt("uClasses", 1)
	bindTexture(2, mat.Elevation, filterNearest)
	p.SetInt("uElevation", 2)
	if mat.ShowClasses {
		p.SetInt("uShowClasses", 1)
	} else {
		p.SetInt("uShowClasses", 0)
	}

	gl.BindVertexArray(res.vao)
	if res.indexed {
		gl.DrawElementsInstanced(gl.TRIANGLES, res.count, gl.UNSIGNED_INT, nil, int32(v.Instances.Len()))
	} else {
		gl.DrawArraysInstanced(gl.TRIANGLES, 0, res.count, int32(v.Instances.Len()))
	}
	gl.BindVertexArray(0)
}

// drawList holds the visible drawables of one frame.
type drawList struct {
	terrain    []*terrain.Mesh
	vegetation []*scene.Vegetation
}

// collect gathers visible terrain first so vegetation depth-tests against it.
func collect(g *scene.Graph) drawList {
	var list drawList
	g.Root().WalkVisible(func(n *scene.Node) bool {
		if n.Terrain != nil {
			list.terrain = append(list.terrain, n.Terrain)
		}
		if n.Vegetation != nil && n.Vegetation.Instances != nil && n.Vegetation.Geometry != nil {
			list.vegetation = append(list.vegetation, n.Vegetation)
		}
		return true
	})
	return list
}
