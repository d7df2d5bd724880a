// Package composer turns study-area selections into a live scene graph.
//
// The composer is driven from one goroutine, the render loop. Asset batches
// are fetched in the background and their results are handed back through
// Update or Wait, so the scene graph and repositories are only touched from
// the render goroutine.
package composer

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/landsim-viewer/internal/assets"
	"github.com/Faultbox/landsim-viewer/internal/engine/scene"
	"github.com/Faultbox/landsim-viewer/internal/instancing"
	"github.com/Faultbox/landsim-viewer/internal/occupancy"
	"github.com/Faultbox/landsim-viewer/internal/raster"
	"github.com/Faultbox/landsim-viewer/internal/session"
)

// Composer errors.
var (
	ErrNoRenderer  = errors.New("composer: renderer is required")
	ErrNoLoader    = errors.New("composer: loader is required")
	ErrNoLibrary   = errors.New("composer: library definitions not set")
	ErrNotReady    = errors.New("composer: no study area is ready")
	ErrNoTimestep  = errors.New("composer: timestep not loaded")
	ErrMissingData = errors.New("composer: study area batch is missing an asset")
	ErrClosed      = errors.New("composer: closed")
)

// State is the study-area lifecycle.
type State int

const (
	NoStudyArea State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "no study area"
	}
}

// Renderer draws the scene graph. Both methods are called on the goroutine
// driving the composer.
type Renderer interface {
	Render(g *scene.Graph)
	Resize(width, height int)
}

// Fetcher loads asset batches. *assets.Loader implements it.
type Fetcher interface {
	Load(ctx context.Context, batch assets.Batch, cb assets.Callbacks) (*assets.Repository, error)
}

// Options configures a Composer.
type Options struct {
	Renderer Renderer
	Loader   Fetcher
	Logger   *zap.Logger

	// Seed feeds placement and rotation randomness. Zero seeds from the clock.
	Seed uint64
	// MaxStride bounds the placement-mask thinning stride.
	MaxStride int
	// DispScale multiplies decoded heights.
	DispScale float32
	// DefaultView is shown when a study area becomes ready.
	DefaultView scene.ViewMode
	// TerrainTextures names the realism blend textures, in shader slot order.
	TerrainTextures []string
}

type batchKind int

const (
	studyAreaBatch batchKind = iota
	outputsBatch
)

// event carries a finished batch back to the render goroutine.
type event struct {
	kind batchKind
	gen  uint64
	repo *assets.Repository
	err  error
}

// Composer owns the scene graph of the current study area.
type Composer struct {
	opts     Options
	log      *zap.Logger
	renderer Renderer
	loader   Fetcher
	graph    *scene.Graph
	occ      *occupancy.Engine
	inst     *instancing.Builder

	state   State
	library session.LibraryDefinitions
	areaID  string
	conds   session.Conditions
	repo    *assets.Repository
	build   *areaBuild
	lastErr error

	run      session.RunControl
	outputs  *assets.Repository
	timestep string

	// gen identifies the current study-area batch, outGen the current
	// outputs batch. Results carrying an older value are discarded.
	gen        uint64
	outGen     uint64
	areaCtx    context.Context
	cancelArea context.CancelFunc
	cancelOut  context.CancelFunc

	events  chan event
	pending int
	done    chan struct{}
	closed  bool
	wg      sync.WaitGroup

	// seq numbers launched batches; only the latest reports progress.
	seq      uint64
	active   atomic.Uint64
	progress atomic.Uint64 // math.Float64bits of the fraction loaded
}

// New creates a composer with an empty scene.
func New(opts Options) (*Composer, error) {
	if opts.Renderer == nil {
		return nil, ErrNoRenderer
	}
	if opts.Loader == nil {
		return nil, ErrNoLoader
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	return &Composer{
		opts:     opts,
		log:      log,
		renderer: opts.Renderer,
		loader:   opts.Loader,
		graph:    scene.NewGraph(opts.DefaultView),
		occ:      occupancy.NewEngine(rng, opts.MaxStride),
		inst:     instancing.NewBuilder(rng),
		events:   make(chan event, 8),
		done:     make(chan struct{}),
	}, nil
}

// Graph returns the scene graph.
func (c *Composer) Graph() *scene.Graph {
	return c.graph
}

// State returns the study-area state.
func (c *Composer) State() State {
	return c.state
}

// IsInitialized reports whether a study area scene is built and showing.
func (c *Composer) IsInitialized() bool {
	return c.state == Ready
}

// StudyArea returns the id of the selected study area.
func (c *Composer) StudyArea() string {
	return c.areaID
}

// Err returns the failure of the last study-area batch, if any.
func (c *Composer) Err() error {
	return c.lastErr
}

// Timestep returns the key of the displayed timestep, or "".
func (c *Composer) Timestep() string {
	return c.timestep
}

// Progress returns the loaded fraction of the active batch.
func (c *Composer) Progress() float64 {
	return math.Float64frombits(c.progress.Load())
}

// ViewMode returns the displayed view.
func (c *Composer) ViewMode() scene.ViewMode {
	return c.graph.ViewMode()
}

// SetViewMode switches terrain and vegetation between realism and data.
func (c *Composer) SetViewMode(mode scene.ViewMode) {
	if c.graph.SetViewMode(mode) {
		c.render()
	}
}

// Resize forwards the new viewport size and redraws.
func (c *Composer) Resize(width, height int) {
	c.renderer.Resize(width, height)
	c.render()
}

// SetLibraryDefinitions selects the library. Switching to another library
// tears the scene down and forgets the selected study area. Changed
// definitions under the same name reload the selected area, since its batch
// and vegetation depend on them.
func (c *Composer) SetLibraryDefinitions(name string, defs session.LibraryDefinitions) {
	defs.Name = name
	prev := c.library
	c.library = defs
	switch {
	case prev.Name == "" || c.state == NoStudyArea && c.areaID == "":
		return
	case prev.Name != name:
		c.log.Info("library changed", zap.String("from", prev.Name), zap.String("to", name))
		c.forget()
	case !prev.Equal(defs):
		id, conds := c.areaID, c.conds
		c.log.Info("library definitions changed", zap.String("library", name), zap.String("area", id))
		c.forget()
		if err := c.SetStudyArea(c.areaCtx, id, conds); err != nil {
			c.log.Error("reloading study area failed", zap.String("id", id), zap.Error(err))
		}
	}
}

// forget tears the scene down and deselects the study area.
func (c *Composer) forget() {
	c.teardown()
	c.areaID = ""
	c.conds = session.Conditions{}
	c.state = NoStudyArea
}

// Update applies every finished batch without blocking. It reports whether
// the scene changed.
func (c *Composer) Update() bool {
	changed := false
	for {
		select {
		case ev := <-c.events:
			if c.apply(ev) {
				changed = true
			}
		default:
			return changed
		}
	}
}

// Wait blocks until every issued batch resolved and was applied.
func (c *Composer) Wait(ctx context.Context) error {
	for c.pending > 0 {
		select {
		case ev := <-c.events:
			c.apply(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close cancels outstanding batches and releases every resource.
func (c *Composer) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.teardown()
	close(c.done)
	c.wg.Wait()
	for {
		select {
		case ev := <-c.events:
			if ev.repo != nil {
				ev.repo.Release()
			}
			c.pending--
		default:
			c.state = NoStudyArea
			return
		}
	}
}

// launch fetches batch in the background and posts the result as an event.
func (c *Composer) launch(ctx context.Context, kind batchKind, gen uint64, batch assets.Batch) {
	c.pending++
	c.seq++
	token := c.seq
	c.active.Store(token)
	c.progress.Store(0)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		repo, err := c.loader.Load(ctx, batch, assets.Callbacks{
			OnProgress: func(f float64) {
				if c.active.Load() == token {
					c.progress.Store(math.Float64bits(f))
				}
			},
		})
		select {
		case c.events <- event{kind: kind, gen: gen, repo: repo, err: err}:
		case <-c.done:
			if repo != nil {
				repo.Release()
			}
		}
	}()
}

// apply handles one finished batch on the render goroutine.
func (c *Composer) apply(ev event) bool {
	c.pending--
	switch ev.kind {
	case studyAreaBatch:
		return c.applyStudyArea(ev)
	case outputsBatch:
		return c.applyOutputs(ev)
	}
	return false
}

func (c *Composer) render() {
	c.renderer.Render(c.graph)
}

// teardown cancels in-flight batches, removes every node and frees the
// current repositories. Backend resources are released before it returns.
// Batches still in flight become stale.
func (c *Composer) teardown() {
	c.gen++
	c.outGen++
	if c.cancelArea != nil {
		c.cancelArea()
		c.cancelArea = nil
	}
	if c.cancelOut != nil {
		c.cancelOut()
		c.cancelOut = nil
	}
	n := c.graph.Clear()
	if c.outputs != nil {
		c.outputs.Release()
		c.outputs = nil
	}
	if c.repo != nil {
		c.repo.Release()
		c.repo = nil
	}
	c.build = nil
	c.timestep = ""
	if n > 0 {
		c.log.Debug("scene torn down", zap.Int("nodes", n))
		c.render()
	}
}

// areaBuild caches what vegetation rebuilds need from a ready study area.
type areaBuild struct {
	veg  *raster.Raster
	mask occupancy.Mask
}
