package composer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/landsim-viewer/internal/assets"
	"github.com/Faultbox/landsim-viewer/internal/engine/material"
	"github.com/Faultbox/landsim-viewer/internal/engine/scene"
	"github.com/Faultbox/landsim-viewer/internal/engine/terrain"
	"github.com/Faultbox/landsim-viewer/internal/engine/texture"
	"github.com/Faultbox/landsim-viewer/internal/occupancy"
	"github.com/Faultbox/landsim-viewer/internal/raster"
	"github.com/Faultbox/landsim-viewer/internal/session"
)

// Names of the study-area rasters inside the repository.
const (
	elevTexture  = "elev"
	vegTexture   = "veg"
	stateTexture = "sc"

	terrainNode    = "terrain"
	vegetationNode = "veg/"
)

// SetStudyArea selects a study area. Selecting the loaded or loading area
// again with equal conditions is a no-op. New conditions for a ready area
// rebuild vegetation from the cached assets. Any other selection tears the
// scene down and fetches the area's batch in the background.
func (c *Composer) SetStudyArea(ctx context.Context, id string, conds session.Conditions) error {
	if c.closed {
		return ErrClosed
	}
	if c.library.Name == "" {
		return ErrNoLibrary
	}

	if id == c.areaID && c.state != NoStudyArea {
		if conds.Equal(c.conds) {
			c.log.Debug("study area unchanged", zap.String("id", id))
			return nil
		}
		if c.state == Loading {
			c.conds = conds
			return nil
		}
		return c.rebuildVegetation(conds)
	}

	c.teardown()
	c.areaID = id
	c.conds = conds
	c.state = Loading
	c.lastErr = nil
	c.areaCtx = ctx

	bctx, cancel := context.WithCancel(ctx)
	c.cancelArea = cancel
	batch := c.studyAreaBatch(id)
	c.log.Info("loading study area", zap.String("id", id), zap.Int("assets", batch.Len()), zap.Uint64("gen", c.gen))
	c.launch(bctx, studyAreaBatch, c.gen, batch)
	return nil
}

// studyAreaBatch lists the rasters of the area, the geometry and texture of
// every asset group in the library, and the terrain blend textures.
func (c *Composer) studyAreaBatch(id string) assets.Batch {
	lib := c.library.Name
	b := assets.Batch{}
	for _, name := range []string{elevTexture, vegTexture, stateTexture} {
		b.Add(assets.KindTexture, name, fmt.Sprintf("%s/select/%s/%s", lib, id, name))
	}
	for _, group := range c.library.AssetGroups() {
		b.Add(assets.KindGeometry, group, fmt.Sprintf("static/json/geometry/%s/%s.json", lib, group))
		b.Add(assets.KindTexture, assetTexture(group), fmt.Sprintf("static/img/%s/%s.png", lib, group))
	}
	for _, name := range c.opts.TerrainTextures {
		b.Add(assets.KindTexture, blendTexture(name), fmt.Sprintf("static/img/terrain/%s.png", name))
	}
	return b
}

func assetTexture(group string) string { return "asset/" + group }

func blendTexture(name string) string { return "terrain/" + name }

func (c *Composer) applyStudyArea(ev event) bool {
	if ev.gen != c.gen {
		c.log.Debug("discarding stale study area batch", zap.Uint64("gen", ev.gen), zap.Uint64("current", c.gen))
		if ev.repo != nil {
			ev.repo.Release()
		}
		return false
	}
	c.cancelArea = nil

	if ev.err != nil {
		c.log.Error("study area failed", zap.String("id", c.areaID), zap.Error(ev.err))
		c.lastErr = ev.err
		c.state = NoStudyArea
		c.areaID = ""
		return false
	}

	c.repo = ev.repo
	if err := c.buildScene(); err != nil {
		c.log.Error("building scene failed", zap.String("id", c.areaID), zap.Error(err))
		c.lastErr = err
		c.teardown()
		c.state = NoStudyArea
		c.areaID = ""
		return true
	}
	c.state = Ready
	c.progress.Store(0)
	c.log.Info("study area ready",
		zap.String("id", c.areaID),
		zap.Int("nodes", c.graph.Len()),
		zap.Int("assets", c.repo.Len()),
		zap.String("view", c.graph.ViewMode().String()))
	c.render()
	return true
}

func (c *Composer) texture(name string) (*texture.Texture, error) {
	t := c.repo.Texture(name)
	if t == nil {
		return nil, fmt.Errorf("%w: texture %s", ErrMissingData, name)
	}
	return t, nil
}

// buildScene decodes the rasters and inserts the terrain pair and one
// vegetation pair per vegetation type.
func (c *Composer) buildScene() error {
	elev, err := c.texture(elevTexture)
	if err != nil {
		return err
	}
	vegTex, err := c.texture(vegTexture)
	if err != nil {
		return err
	}
	sc, err := c.texture(stateTexture)
	if err != nil {
		return err
	}

	heights, err := raster.HeightsFromTexture(elev)
	if err != nil {
		return err
	}
	params := terrain.Params{
		Width:     elev.Width,
		Height:    elev.Height,
		Heights:   heights,
		DispScale: c.opts.DispScale,
	}

	var blend []*texture.Texture
	for _, name := range c.opts.TerrainTextures {
		if t := c.repo.Texture(blendTexture(name)); t != nil {
			blend = append(blend, t)
		}
	}
	realism, err := terrain.BuildRealism(params, blend)
	if err != nil {
		return err
	}
	data, err := terrain.BuildDataView(params, sc)
	if err != nil {
		realism.Release()
		return err
	}
	if _, err := c.graph.AddPair(terrainNode,
		scene.NewTerrainNode(terrainNode+"-realism", realism),
		scene.NewTerrainNode(terrainNode+"-data", data)); err != nil {
		return err
	}
	center := realism.Bounds.Center()
	c.log.Debug("terrain built",
		zap.Int("width", params.Width),
		zap.Int("height", params.Height),
		zap.Float32("min_height", realism.Bounds.Min[1]),
		zap.Float32("max_height", realism.Bounds.Max[1]),
		zap.Float32("center_height", terrain.HeightAt(params, center[0], center[2])))

	veg, err := raster.FromTexture(vegTex)
	if err != nil {
		return err
	}
	c.build = &areaBuild{veg: veg, mask: c.occ.PlacementMask(veg)}
	c.log.Debug("placement mask drawn", zap.Int("stride", c.build.mask.Stride))

	return c.addVegetation()
}

// rebuildVegetation replaces every vegetation pair for conds using the
// cached raster and placement mask. On failure the previous conditions and
// their vegetation are restored.
func (c *Composer) rebuildVegetation(conds session.Conditions) error {
	c.log.Info("rebuilding vegetation", zap.String("id", c.areaID))
	prev := c.conds
	c.removeVegetation()
	c.conds = conds
	err := c.addVegetation()
	if err != nil {
		c.log.Error("rebuilding vegetation failed", zap.String("id", c.areaID), zap.Error(err))
		c.removeVegetation()
		c.conds = prev
		if rerr := c.addVegetation(); rerr != nil {
			c.log.Error("restoring vegetation failed", zap.Error(rerr))
		}
	}
	c.render()
	return err
}

func (c *Composer) removeVegetation() {
	var names []string
	for _, n := range c.graph.Root().Children {
		if strings.HasPrefix(n.Name, vegetationNode) {
			names = append(names, n.Name)
		}
	}
	for _, name := range names {
		c.graph.Remove(name)
	}
}

func (c *Composer) addVegetation() error {
	elev, err := c.texture(elevTexture)
	if err != nil {
		return err
	}
	sc, err := c.texture(stateTexture)
	if err != nil {
		return err
	}
	if c.outputs != nil && c.timestep != "" {
		if t := c.outputs.Texture(c.timestep); t != nil {
			sc = t
		}
	}

	v := c.build.veg
	for _, name := range c.conds.VegTypes() {
		def, ok := c.library.VegTypes[name]
		if !ok {
			c.log.Debug("vegetation type not in library", zap.String("type", name))
			continue
		}
		m, err := occupancy.Positions(def.ID, c.build.mask, v, v.Width, v.Height)
		if err != nil {
			return err
		}
		if m.ValidCount == 0 {
			c.log.Debug("vegetation type has no cells", zap.String("type", name))
			continue
		}
		geom := c.repo.Geometry(def.AssetName)
		if geom == nil {
			return fmt.Errorf("%w: geometry %s", ErrMissingData, def.AssetName)
		}
		tex, err := c.texture(assetTexture(def.AssetName))
		if err != nil {
			return err
		}
		attrs, err := c.inst.Build(m)
		if err != nil {
			return err
		}

		realism := &scene.Vegetation{
			Type:      name,
			Geometry:  geom,
			Instances: attrs,
			Material:  &material.Vegetation{Texture: tex, Classes: sc, Elevation: elev, DispScale: c.opts.DispScale},
		}
		data := &scene.Vegetation{
			Type:      name,
			Geometry:  geom,
			Instances: attrs,
			Material:  &material.Vegetation{Texture: tex, Classes: sc, Elevation: elev, DispScale: c.opts.DispScale, ShowClasses: true},
		}
		if _, err := c.graph.AddPair(vegetationNode+name,
			scene.NewVegetationNode(name+"-realism", realism),
			scene.NewVegetationNode(name+"-data", data)); err != nil {
			return err
		}
		c.log.Debug("vegetation built",
			zap.String("type", name),
			zap.Int("instances", attrs.Len()),
			zap.Int("triangles", geom.TriangleCount()))
	}
	return nil
}
