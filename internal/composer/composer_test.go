package composer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Faultbox/landsim-viewer/internal/assets"
	"github.com/Faultbox/landsim-viewer/internal/engine/gpu"
	"github.com/Faultbox/landsim-viewer/internal/engine/material"
	"github.com/Faultbox/landsim-viewer/internal/engine/scene"
	"github.com/Faultbox/landsim-viewer/internal/raster"
	"github.com/Faultbox/landsim-viewer/internal/session"
)

const triangle = `{"data":{"attributes":{"position":{"itemSize":3,"array":[0,0,0,1,0,0,0,1,0]}},"index":{"array":[0,1,2]}}}`

// fakeRenderer records renders and binds a counting resource to every
// uploadable piece of the graph, the way a GPU backend would.
type fakeRenderer struct {
	renders  int
	lens     []int
	width    int
	height   int
	released int
}

func (r *fakeRenderer) bind(b *gpu.Binding) {
	if b.Bound() == nil {
		b.Bind(gpu.ReleaseFunc(func() { r.released++ }))
	}
}

func (r *fakeRenderer) Render(g *scene.Graph) {
	r.renders++
	r.lens = append(r.lens, g.Len())
	g.Walk(func(n *scene.Node) bool {
		if n.Terrain != nil {
			r.bind(&n.Terrain.Binding)
		}
		if n.Vegetation != nil {
			r.bind(&n.Vegetation.Instances.Binding)
		}
		return true
	})
}

func (r *fakeRenderer) Resize(w, h int) {
	r.width, r.height = w, h
}

// fakeSource serves generated study-area files. URLs containing a gated
// prefix block until the gate is closed, ignoring cancellation.
type fakeSource struct {
	mu      sync.Mutex
	files   map[string][]byte
	gates   map[string]chan struct{}
	fetches int
}

func (s *fakeSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	s.fetches++
	data, ok := s.files[url]
	var gate chan struct{}
	for prefix, g := range s.gates {
		if strings.Contains(url, prefix) {
			gate = g
		}
	}
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, assets.ErrNotFound
	}
	return data, nil
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func rasterPNG(t *testing.T, w, h int, values []uint32) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, v := range values {
		px := raster.Encode(v)
		copy(img.Pix[i*4:], px[:])
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func fill(n int, v uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// vegValues places Sagebrush (7) at (1,1),(2,2) and Juniper (12) at three
// corners of a 4x4 grid.
func vegValues() []uint32 {
	v := make([]uint32, 16)
	v[1+1*4] = 7
	v[2+2*4] = 7
	v[0+3*4] = 12
	v[3+0*4] = 12
	v[3+3*4] = 12
	return v
}

func addArea(t *testing.T, files map[string][]byte, id string, height uint32) {
	files[fmt.Sprintf("lib/select/%s/elev", id)] = rasterPNG(t, 4, 4, fill(16, height))
	files[fmt.Sprintf("lib/select/%s/veg", id)] = rasterPNG(t, 4, 4, vegValues())
	files[fmt.Sprintf("lib/select/%s/sc", id)] = rasterPNG(t, 4, 4, fill(16, 1))
}

func newSource(t *testing.T) *fakeSource {
	files := map[string][]byte{
		"static/json/geometry/lib/sagebrush.json": []byte(triangle),
		"static/json/geometry/lib/tree.json":      []byte(triangle),
		"static/img/lib/sagebrush.png":            rasterPNG(t, 2, 2, fill(4, 3)),
		"static/img/lib/tree.png":                 rasterPNG(t, 2, 2, fill(4, 4)),
		"static/img/terrain/grass.png":            rasterPNG(t, 2, 2, fill(4, 5)),
	}
	addArea(t, files, "1", 0)
	addArea(t, files, "2", 0)
	for ts := 1; ts <= 2; ts++ {
		files[fmt.Sprintf("lib/outputs/8/sc/1/%d/", ts)] = rasterPNG(t, 4, 4, fill(16, uint32(10+ts)))
	}
	return &fakeSource{files: files, gates: make(map[string]chan struct{})}
}

func library() session.LibraryDefinitions {
	return session.LibraryDefinitions{
		VegTypes: map[string]session.VegType{
			"Sagebrush": {ID: 7, AssetName: "sagebrush"},
			"Juniper":   {ID: 12, AssetName: "tree"},
		},
	}
}

func conditions(types ...string) session.Conditions {
	c := session.Conditions{VegSCPct: make(map[string]map[string]float64)}
	for _, name := range types {
		c.VegSCPct[name] = map[string]float64{"1": 100}
	}
	return c
}

func newComposer(t *testing.T, src assets.Source) (*Composer, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	c, err := New(Options{
		Renderer:        r,
		Loader:          assets.NewLoader(src),
		Seed:            1,
		MaxStride:       2, // stride is always 1: every classified cell is kept
		DispScale:       0.5,
		DefaultView:     scene.Realism,
		TerrainTextures: []string{"grass"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	c.SetLibraryDefinitions("lib", library())
	return c, r
}

func wait(t *testing.T, c *Composer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func ready(t *testing.T, c *Composer, id string, conds session.Conditions) {
	t.Helper()
	if err := c.SetStudyArea(context.Background(), id, conds); err != nil {
		t.Fatalf("SetStudyArea failed: %v", err)
	}
	wait(t, c)
	if c.State() != Ready {
		t.Fatalf("expected Ready, got %v (err %v)", c.State(), c.Err())
	}
}

func vegetation(c *Composer) map[string]*scene.Vegetation {
	out := make(map[string]*scene.Vegetation)
	c.Graph().Walk(func(n *scene.Node) bool {
		if n.Vegetation != nil {
			out[n.Name] = n.Vegetation
		}
		return true
	})
	return out
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Loader: assets.NewLoader(assets.DirSource{})}); !errors.Is(err, ErrNoRenderer) {
		t.Errorf("expected ErrNoRenderer, got %v", err)
	}
	if _, err := New(Options{Renderer: &fakeRenderer{}}); !errors.Is(err, ErrNoLoader) {
		t.Errorf("expected ErrNoLoader, got %v", err)
	}
}

func TestSetStudyAreaNeedsLibrary(t *testing.T) {
	c, err := New(Options{Renderer: &fakeRenderer{}, Loader: assets.NewLoader(assets.DirSource{})})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.SetStudyArea(context.Background(), "1", conditions()); !errors.Is(err, ErrNoLibrary) {
		t.Errorf("expected ErrNoLibrary, got %v", err)
	}
}

func TestStudyAreaBecomesReady(t *testing.T) {
	src := newSource(t)
	c, r := newComposer(t, src)

	if err := c.SetStudyArea(context.Background(), "1", conditions("Sagebrush", "Juniper")); err != nil {
		t.Fatal(err)
	}
	if c.State() != Loading || c.IsInitialized() {
		t.Fatalf("expected Loading, got %v", c.State())
	}
	wait(t, c)

	if !c.IsInitialized() {
		t.Fatalf("expected ready scene, err %v", c.Err())
	}
	// Terrain pair plus one pair per vegetation type.
	if c.Graph().Len() != 3 {
		t.Errorf("expected 3 top-level nodes, got %d", c.Graph().Len())
	}
	if r.renders == 0 {
		t.Error("expected a render once ready")
	}

	veg := vegetation(c)
	if got := veg["Sagebrush-realism"].Instances.Len(); got != 2 {
		t.Errorf("expected 2 sagebrush instances, got %d", got)
	}
	if got := veg["Juniper-data"].Instances.Len(); got != 3 {
		t.Errorf("expected 3 juniper instances, got %d", got)
	}
	if x, y := veg["Sagebrush-realism"].Instances.Offset(0); x != -1 || y != -1 {
		t.Errorf("unexpected first offset (%v, %v)", x, y)
	}

	terr := c.Graph().Pair("terrain")
	if !terr.Realism.Visible || terr.Data.Visible {
		t.Error("expected realism terrain shown and data hidden")
	}
	if m, ok := terr.Realism.Terrain.Material.(*material.Realism); !ok || len(m.Textures) != 1 {
		t.Errorf("expected realism material with one blend texture")
	}
	if c.Progress() != 0 {
		t.Errorf("expected progress reset once built, got %v", c.Progress())
	}
}

func TestSetStudyAreaIdempotent(t *testing.T) {
	src := newSource(t)
	c, r := newComposer(t, src)
	ready(t, c, "1", conditions("Sagebrush"))

	fetches, renders, version := src.count(), r.renders, c.Graph().Version()
	if err := c.SetStudyArea(context.Background(), "1", conditions("Sagebrush")); err != nil {
		t.Fatal(err)
	}
	wait(t, c)

	if src.count() != fetches {
		t.Errorf("expected no new fetches, got %d more", src.count()-fetches)
	}
	if c.Graph().Version() != version || r.renders != renders {
		t.Error("expected no scene mutation")
	}
}

func TestSameAreaNewConditionsRebuildsFromCache(t *testing.T) {
	src := newSource(t)
	c, r := newComposer(t, src)
	ready(t, c, "1", conditions("Sagebrush", "Juniper"))

	fetches := src.count()
	old := vegetation(c)["Sagebrush-realism"].Instances
	before := r.released

	if err := c.SetStudyArea(context.Background(), "1", conditions("Juniper")); err != nil {
		t.Fatal(err)
	}
	if src.count() != fetches {
		t.Errorf("expected rebuild without fetching, got %d fetches", src.count()-fetches)
	}
	veg := vegetation(c)
	if _, ok := veg["Sagebrush-realism"]; ok {
		t.Error("expected sagebrush removed")
	}
	if _, ok := veg["Juniper-realism"]; !ok {
		t.Error("expected juniper present")
	}
	if old.Binding.Bound() != nil {
		t.Error("expected old instance buffers released")
	}
	// Two previous vegetation pairs shared one instance buffer each.
	if r.released-before != 2 {
		t.Errorf("expected 2 instance releases, got %d", r.released-before)
	}
	if c.Graph().Pair("terrain") == nil {
		t.Error("terrain must survive a vegetation rebuild")
	}
}

func TestTeardownReleasesSynchronously(t *testing.T) {
	src := newSource(t)
	c, r := newComposer(t, src)
	ready(t, c, "1", conditions("Sagebrush", "Juniper"))

	// Two terrain meshes and two shared instance buffers were uploaded.
	if err := c.SetStudyArea(context.Background(), "2", conditions("Sagebrush")); err != nil {
		t.Fatal(err)
	}
	if r.released != 4 {
		t.Errorf("expected 4 releases before SetStudyArea returned, got %d", r.released)
	}
	if c.Graph().Len() != 0 {
		t.Errorf("expected empty graph while loading, got %d", c.Graph().Len())
	}
	if last := r.lens[len(r.lens)-1]; last != 0 {
		t.Errorf("expected the empty scene rendered, got %d nodes", last)
	}
	if c.State() != Loading {
		t.Errorf("expected Loading, got %v", c.State())
	}
	wait(t, c)
	if c.StudyArea() != "2" || !c.IsInitialized() {
		t.Errorf("expected area 2 ready, got %q %v", c.StudyArea(), c.State())
	}
}

func TestStaleBatchIsDiscarded(t *testing.T) {
	src := newSource(t)
	// Area 1 is tall, area 2 is flat.
	addArea(t, src.files, "1", 100)
	gate := make(chan struct{})
	src.gates["/select/1/"] = gate

	c, _ := newComposer(t, src)
	if err := c.SetStudyArea(context.Background(), "1", conditions("Sagebrush")); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStudyArea(context.Background(), "2", conditions("Sagebrush")); err != nil {
		t.Fatal(err)
	}
	close(gate)
	wait(t, c)

	if c.StudyArea() != "2" || c.State() != Ready {
		t.Fatalf("expected area 2 ready, got %q %v", c.StudyArea(), c.State())
	}
	mesh := c.Graph().Pair("terrain").Realism.Terrain
	if mesh.Bounds.Max[1] != 0 {
		t.Errorf("expected flat terrain of area 2, got max height %v", mesh.Bounds.Max[1])
	}
	if c.Graph().Len() != 2 {
		t.Errorf("expected one scene built, got %d top-level nodes", c.Graph().Len())
	}
}

func TestLibraryChangeDiscardsLoadingBatch(t *testing.T) {
	src := newSource(t)
	gate := make(chan struct{})
	src.gates["/select/1/"] = gate

	c, _ := newComposer(t, src)
	if err := c.SetStudyArea(context.Background(), "1", conditions("Sagebrush")); err != nil {
		t.Fatal(err)
	}
	c.SetLibraryDefinitions("other", library())
	close(gate)
	wait(t, c)

	if c.State() != NoStudyArea || c.StudyArea() != "" || c.Graph().Len() != 0 {
		t.Errorf("expected batch of the old library dropped, got %v %q %d nodes",
			c.State(), c.StudyArea(), c.Graph().Len())
	}
}

func TestLibraryDefinitionsChangeReloadsArea(t *testing.T) {
	src := newSource(t)
	c, _ := newComposer(t, src)
	ready(t, c, "1", conditions("Sagebrush", "Juniper"))

	fetches := src.count()
	c.SetLibraryDefinitions("lib", library())
	if c.State() != Ready || src.count() != fetches {
		t.Fatalf("equal definitions must not reload, got %v and %d fetches", c.State(), src.count()-fetches)
	}

	defs := library()
	defs.VegTypes["Juniper"] = session.VegType{ID: 12, AssetName: "sagebrush"}
	c.SetLibraryDefinitions("lib", defs)
	if c.State() != Loading {
		t.Fatalf("expected reload, got %v", c.State())
	}
	wait(t, c)

	if c.State() != Ready || c.StudyArea() != "1" {
		t.Fatalf("expected area 1 ready again, got %q %v (err %v)", c.StudyArea(), c.State(), c.Err())
	}
	juniper, ok := vegetation(c)["Juniper-realism"]
	if !ok {
		t.Fatal("expected juniper rebuilt")
	}
	if juniper.Geometry != vegetation(c)["Sagebrush-realism"].Geometry {
		t.Error("expected juniper drawn with the sagebrush geometry")
	}
}

func TestFailedRebuildRestoresVegetation(t *testing.T) {
	src := newSource(t)
	c, _ := newComposer(t, src)
	ready(t, c, "1", conditions("Sagebrush"))

	// A type whose geometry was never fetched.
	c.library.VegTypes["Pinyon"] = session.VegType{ID: 12, AssetName: "pinyon"}

	for range 2 {
		err := c.SetStudyArea(context.Background(), "1", conditions("Sagebrush", "Pinyon"))
		if !errors.Is(err, ErrMissingData) {
			t.Fatalf("expected ErrMissingData, got %v", err)
		}
		if c.State() != Ready {
			t.Errorf("expected Ready, got %v", c.State())
		}
		veg := vegetation(c)
		if _, ok := veg["Sagebrush-realism"]; !ok {
			t.Error("expected previous vegetation restored")
		}
		if _, ok := veg["Pinyon-realism"]; ok {
			t.Error("failed type must not be in the scene")
		}
		if !c.conds.Equal(conditions("Sagebrush")) {
			t.Error("expected previous conditions kept")
		}
	}
}

func TestFailedBatch(t *testing.T) {
	src := newSource(t)
	delete(src.files, "lib/select/1/veg")
	c, _ := newComposer(t, src)

	if err := c.SetStudyArea(context.Background(), "1", conditions("Sagebrush")); err != nil {
		t.Fatal(err)
	}
	wait(t, c)

	if c.State() != NoStudyArea {
		t.Errorf("expected NoStudyArea, got %v", c.State())
	}
	var ae *assets.AssetError
	if !errors.As(c.Err(), &ae) || ae.Name != "veg" {
		t.Errorf("expected veg asset failure, got %v", c.Err())
	}

	// A failed area can be selected again.
	src.files["lib/select/1/veg"] = rasterPNG(t, 4, 4, vegValues())
	ready(t, c, "1", conditions("Sagebrush"))
}

func TestTimestepSwap(t *testing.T) {
	src := newSource(t)
	c, r := newComposer(t, src)

	rc := session.RunControl{ScenarioID: "8", MinIteration: 1, MaxIteration: 1, MinTimestep: 1, MaxTimestep: 2}
	if err := c.CollectSpatialOutputs(context.Background(), rc); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady before a study area, got %v", err)
	}

	ready(t, c, "1", conditions("Sagebrush", "Juniper"))
	instances := vegetation(c)["Juniper-data"].Instances

	if err := c.CollectSpatialOutputs(context.Background(), rc); err != nil {
		t.Fatal(err)
	}
	wait(t, c)
	if c.Timestep() != "1_1" {
		t.Fatalf("expected first timestep shown, got %q", c.Timestep())
	}

	check := func(key string) {
		t.Helper()
		want := c.outputs.Texture(key)
		for name, v := range vegetation(c) {
			if v.Material.Classes != want {
				t.Errorf("%s: classes not swapped to %s", name, key)
			}
		}
		data := c.Graph().Pair("terrain").Data.Terrain.Material.(*material.Data)
		if data.Classes != want {
			t.Errorf("data terrain not swapped to %s", key)
		}
	}
	check("1_1")

	renders := r.renders
	if err := c.SetTimestep(1, 2); err != nil {
		t.Fatal(err)
	}
	check("1_2")
	if r.renders != renders+1 {
		t.Error("expected one render per timestep change")
	}
	if vegetation(c)["Juniper-data"].Instances != instances {
		t.Error("timestep change must not rebuild instance buffers")
	}

	if err := c.StepTimestep(1); err != nil || c.Timestep() != "1_1" {
		t.Errorf("expected wrap to 1_1, got %q %v", c.Timestep(), err)
	}
	if err := c.SetTimestep(4, 4); !errors.Is(err, ErrNoTimestep) {
		t.Errorf("expected ErrNoTimestep, got %v", err)
	}
}

func TestViewModeSwitchesEveryPair(t *testing.T) {
	src := newSource(t)
	c, r := newComposer(t, src)
	ready(t, c, "1", conditions("Sagebrush", "Juniper"))

	renders := r.renders
	c.SetViewMode(scene.Data)
	if r.renders != renders+1 {
		t.Error("expected a render on view change")
	}
	c.Graph().Walk(func(n *scene.Node) bool {
		switch {
		case strings.HasSuffix(n.Name, "-realism") && n.Visible:
			t.Errorf("%s visible in data view", n.Name)
		case strings.HasSuffix(n.Name, "-data") && !n.Visible:
			t.Errorf("%s hidden in data view", n.Name)
		}
		return true
	})

	c.SetViewMode(scene.Data)
	if r.renders != renders+1 {
		t.Error("expected no render when the view is unchanged")
	}
}

func TestLibraryChangeForgetsStudyArea(t *testing.T) {
	src := newSource(t)
	c, _ := newComposer(t, src)
	ready(t, c, "1", conditions("Sagebrush"))

	c.SetLibraryDefinitions("other", library())
	if c.State() != NoStudyArea || c.StudyArea() != "" || c.Graph().Len() != 0 {
		t.Errorf("expected scene forgotten, got %v %q %d", c.State(), c.StudyArea(), c.Graph().Len())
	}
}

func TestResize(t *testing.T) {
	c, r := newComposer(t, newSource(t))
	c.Resize(800, 600)
	if r.width != 800 || r.height != 600 || r.renders != 1 {
		t.Errorf("unexpected renderer state %+v", r)
	}
}

func TestCloseCancelsLoading(t *testing.T) {
	src := newSource(t)
	gate := make(chan struct{})
	src.gates["/select/1/"] = gate
	c, _ := newComposer(t, src)

	if err := c.SetStudyArea(context.Background(), "1", conditions("Sagebrush")); err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(gate)
	}()
	c.Close()

	if c.State() != NoStudyArea {
		t.Errorf("expected NoStudyArea after Close, got %v", c.State())
	}
	if err := c.SetStudyArea(context.Background(), "1", conditions()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
