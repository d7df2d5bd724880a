// Package viewer runs the demand-driven study-area viewer loop.
package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/landsim-viewer/internal/assets"
	"github.com/Faultbox/landsim-viewer/internal/composer"
	"github.com/Faultbox/landsim-viewer/internal/config"
	"github.com/Faultbox/landsim-viewer/internal/engine/camera"
	"github.com/Faultbox/landsim-viewer/internal/engine/input"
	"github.com/Faultbox/landsim-viewer/internal/engine/renderer"
	"github.com/Faultbox/landsim-viewer/internal/engine/scene"
	"github.com/Faultbox/landsim-viewer/internal/engine/window"
	"github.com/Faultbox/landsim-viewer/internal/logger"
	"github.com/Faultbox/landsim-viewer/internal/session"
)

const (
	title = "Landscape Viewer"

	// idleWait bounds how long the loop sleeps waiting for input.
	idleWait = 250 * time.Millisecond
	// loadingWait keeps batch results flowing while assets load.
	loadingWait = 30 * time.Millisecond

	panStep = 5
)

// Viewer owns the window, renderer and composer.
type Viewer struct {
	cfg  *config.Config
	sess *session.Session
	log  *zap.Logger

	window   *window.Window
	renderer *renderer.Renderer
	camera   *camera.OrbitCamera
	input    *input.Input
	drag     input.Drag
	composer *composer.Composer
	cache    *assets.Cache // nil when serving from disk

	ctx    context.Context
	cancel context.CancelFunc

	collected    bool
	lastProgress int
}

// New creates the window and GL context and selects the session's study area.
func New(cfg *config.Config, sess *session.Session) (*Viewer, error) {
	v := &Viewer{
		cfg:          cfg,
		sess:         sess,
		log:          logger.Named("viewer"),
		camera:       camera.NewOrbitCamera(),
		input:        input.New(),
		lastProgress: -1,
	}
	v.ctx, v.cancel = context.WithCancel(context.Background())

	var err error
	v.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	}, logger.Named("window"))
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	width, height := v.window.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{
		Width:   width,
		Height:  height,
		Present: v.window.SwapBuffers,
	}, v.camera, logger.Named("renderer"))
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	view, err := scene.ParseViewMode(cfg.Scene.DefaultView)
	if err != nil {
		v.Close()
		return nil, err
	}

	loader := assets.NewLoader(v.newSource(),
		assets.WithLogger(logger.Named("assets")),
		assets.WithMaxInFlight(cfg.Loader.MaxInFlight))

	v.composer, err = composer.New(composer.Options{
		Renderer:        v.renderer,
		Loader:          loader,
		Logger:          logger.Named("composer"),
		Seed:            cfg.Scene.Seed,
		MaxStride:       cfg.Scene.MaxPlacementStride,
		DispScale:       cfg.Scene.DispScale,
		DefaultView:     view,
		TerrainTextures: cfg.Scene.TerrainTextures,
	})
	if err != nil {
		v.Close()
		return nil, err
	}

	v.composer.SetLibraryDefinitions(sess.Library.Name, sess.Library)
	if err := v.composer.SetStudyArea(v.ctx, sess.StudyArea.ID, sess.StudyArea.Conditions); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// newSource picks disk or server assets. Repeat fetches of static library
// assets are served from memory.
func (v *Viewer) newSource() assets.Source {
	if v.cfg.Server.AssetDir != "" {
		return assets.DirSource{Root: v.cfg.Server.AssetDir}
	}
	src := assets.NewCachedSource(assets.NewHTTPSource(v.cfg.Server.BaseURL, v.cfg.Server.Timeout))
	v.cache = src.Cache
	return src
}

// Run processes events until the window closes. Frames are drawn only when
// something changed, or continuously while a mouse button is held.
func (v *Viewer) Run() error {
	v.log.Info("starting viewer loop")
	v.composer.Resize(v.window.DrawableSize())

	for {
		wait := idleWait
		switch {
		case v.drag.Continuous():
			wait = 0
		case v.composer.State() == composer.Loading:
			wait = loadingWait
		}

		if v.input.Update(wait) {
			return nil
		}
		events := v.input.Events()

		dirty := v.drag.Apply(events, v.camera)
		for _, e := range events {
			switch e.Type {
			case input.EventWindowResize:
				v.composer.Resize(v.window.DrawableSize())
			case input.EventKeyDown:
				if e.Key == sdl.SCANCODE_ESCAPE {
					return nil
				}
				v.handleKey(e.Key)
			}
		}

		if v.composer.Update() {
			v.onSceneChanged()
		}
		v.reportProgress()

		if dirty || v.drag.Continuous() {
			v.renderer.Render(v.composer.Graph())
		}
	}
}

func (v *Viewer) handleKey(key sdl.Scancode) {
	var err error
	switch key {
	case sdl.SCANCODE_V:
		next := scene.Data
		if v.composer.ViewMode() == scene.Data {
			next = scene.Realism
		}
		v.composer.SetViewMode(next)
		v.log.Info("view mode", zap.String("mode", next.String()))
	case sdl.SCANCODE_RIGHT:
		err = v.composer.StepTimestep(1)
	case sdl.SCANCODE_LEFT:
		err = v.composer.StepTimestep(-1)
	case sdl.SCANCODE_UP:
		err = v.composer.StepTimestep(v.timestepsPerIteration())
	case sdl.SCANCODE_DOWN:
		err = v.composer.StepTimestep(-v.timestepsPerIteration())
	case sdl.SCANCODE_O:
		// Runs may have been re-executed on the server.
		if v.cache != nil {
			v.cache.Clear()
		}
		v.collected = false
		v.collectOutputs()
	case sdl.SCANCODE_W, sdl.SCANCODE_S, sdl.SCANCODE_A, sdl.SCANCODE_D:
		v.pan(key)
	case sdl.SCANCODE_F:
		if err := v.window.ToggleFullscreen(); err != nil {
			v.log.Warn("fullscreen toggle failed", zap.Error(err))
		}
	}
	if err != nil {
		v.log.Warn("timestep change failed", zap.Error(err))
		return
	}
	if ts := v.composer.Timestep(); ts != "" {
		v.window.SetTitle(fmt.Sprintf("%s - %s - step %s", title, v.sess.StudyArea.ID, ts))
	}
}

// pan moves the orbit center over the terrain.
func (v *Viewer) pan(key sdl.Scancode) {
	var forward, right float32
	switch key {
	case sdl.SCANCODE_W:
		forward = panStep
	case sdl.SCANCODE_S:
		forward = -panStep
	case sdl.SCANCODE_A:
		right = -panStep
	case sdl.SCANCODE_D:
		right = panStep
	}
	v.camera.HandleMovement(forward, right)
	v.renderer.Render(v.composer.Graph())
}

func (v *Viewer) timestepsPerIteration() int {
	if v.sess.RunControl == nil {
		return 1
	}
	return v.sess.RunControl.MaxTimestep - v.sess.RunControl.MinTimestep + 1
}

// onSceneChanged follows a finished batch: the first time the study area is
// ready, the session's run outputs are requested.
func (v *Viewer) onSceneChanged() {
	switch {
	case v.composer.IsInitialized():
		v.window.SetTitle(fmt.Sprintf("%s - %s", title, v.sess.StudyArea.ID))
		v.logCache()
		v.collectOutputs()
	case v.composer.Err() != nil:
		v.window.SetTitle(fmt.Sprintf("%s - failed to load %s", title, v.sess.StudyArea.ID))
	}
}

func (v *Viewer) logCache() {
	if v.cache == nil {
		return
	}
	hits, misses := v.cache.Stats()
	v.log.Debug("asset cache",
		zap.Int("entries", v.cache.Len()),
		zap.Int("hits", hits),
		zap.Int("misses", misses))
}

func (v *Viewer) collectOutputs() {
	if v.collected || v.sess.RunControl == nil || !v.composer.IsInitialized() {
		return
	}
	v.collected = true
	if err := v.composer.CollectSpatialOutputs(v.ctx, *v.sess.RunControl); err != nil {
		v.log.Warn("collecting outputs failed", zap.Error(err))
	}
}

func (v *Viewer) reportProgress() {
	if v.composer.State() != composer.Loading {
		v.lastProgress = -1
		return
	}
	pct := int(v.composer.Progress() * 100)
	if pct == v.lastProgress {
		return
	}
	v.lastProgress = pct
	v.log.Debug("loading", zap.Int("percent", pct))
	v.window.SetTitle(fmt.Sprintf("%s - loading %s (%d%%)", title, v.sess.StudyArea.ID, pct))
}

// Close releases the scene, renderer and window in that order.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")
	v.cancel()
	if v.composer != nil {
		v.composer.Close()
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
