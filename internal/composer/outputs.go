package composer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/landsim-viewer/internal/assets"
	"github.com/Faultbox/landsim-viewer/internal/engine/material"
	"github.com/Faultbox/landsim-viewer/internal/engine/scene"
	"github.com/Faultbox/landsim-viewer/internal/session"
)

// CollectSpatialOutputs fetches the state-class texture of every iteration
// and timestep of a finished run. Once loaded the scene jumps to the first
// step. A newer call supersedes one still loading.
func (c *Composer) CollectSpatialOutputs(ctx context.Context, rc session.RunControl) error {
	if c.closed {
		return ErrClosed
	}
	if c.state != Ready {
		return ErrNotReady
	}
	if err := rc.Validate(); err != nil {
		return err
	}

	if c.cancelOut != nil {
		c.cancelOut()
	}
	c.run = rc
	c.outGen++

	b := assets.Batch{}
	for _, step := range rc.Steps() {
		it, ts := step[0], step[1]
		b.Add(assets.KindTexture, session.Key(it, ts),
			fmt.Sprintf("%s/outputs/%s/sc/%d/%d/", c.library.Name, rc.ScenarioID, it, ts))
	}

	bctx, cancel := context.WithCancel(ctx)
	c.cancelOut = cancel
	c.log.Info("collecting spatial outputs",
		zap.String("scenario", rc.ScenarioID),
		zap.Int("steps", b.Len()))
	c.launch(bctx, outputsBatch, c.outGen, b)
	return nil
}

func (c *Composer) applyOutputs(ev event) bool {
	// Outputs belong to the study area they were requested for; a teardown
	// in between also cancels and invalidates them.
	if ev.gen != c.outGen || c.state != Ready || c.cancelOut == nil {
		c.log.Debug("discarding stale outputs batch", zap.Uint64("gen", ev.gen))
		if ev.repo != nil {
			ev.repo.Release()
		}
		return false
	}
	c.cancelOut = nil

	if ev.err != nil {
		c.log.Error("collecting outputs failed", zap.Error(ev.err))
		return false
	}

	if c.outputs != nil {
		c.outputs.Release()
	}
	c.outputs = ev.repo
	steps := c.run.Steps()
	if len(steps) == 0 {
		return false
	}
	if err := c.SetTimestep(steps[0][0], steps[0][1]); err != nil {
		c.log.Error("showing first timestep failed", zap.Error(err))
		return false
	}
	return true
}

// SetTimestep shows the state classes of one iteration and timestep by
// swapping the classification texture on every vegetation material and the
// data terrain. Geometry and instance buffers are untouched.
func (c *Composer) SetTimestep(iteration, timestep int) error {
	if c.state != Ready {
		return ErrNotReady
	}
	key := session.Key(iteration, timestep)
	if c.outputs == nil {
		return fmt.Errorf("%w: %s", ErrNoTimestep, key)
	}
	tex := c.outputs.Texture(key)
	if tex == nil {
		return fmt.Errorf("%w: %s", ErrNoTimestep, key)
	}

	c.graph.Walk(func(n *scene.Node) bool {
		if n.Vegetation != nil && n.Vegetation.Material != nil {
			n.Vegetation.Material.SetClasses(tex)
		}
		if n.Terrain != nil {
			if m, ok := n.Terrain.Material.(*material.Data); ok {
				m.SetClasses(tex)
			}
		}
		return true
	})
	c.timestep = key
	c.graph.Touch()
	c.render()
	return nil
}

// StepTimestep moves delta steps through the loaded run, wrapping around.
func (c *Composer) StepTimestep(delta int) error {
	steps := c.run.Steps()
	if c.outputs == nil || len(steps) == 0 {
		return ErrNoTimestep
	}
	cur := 0
	for i, s := range steps {
		if session.Key(s[0], s[1]) == c.timestep {
			cur = i
			break
		}
	}
	next := ((cur+delta)%len(steps) + len(steps)) % len(steps)
	return c.SetTimestep(steps[next][0], steps[next][1])
}
