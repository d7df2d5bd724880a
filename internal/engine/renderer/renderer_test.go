package renderer

import (
	"testing"

	"github.com/Faultbox/landsim-viewer/internal/engine/geometry"
	"github.com/Faultbox/landsim-viewer/internal/engine/scene"
	"github.com/Faultbox/landsim-viewer/internal/engine/terrain"
	"github.com/Faultbox/landsim-viewer/internal/instancing"
)

func TestInterleave(t *testing.T) {
	g := &geometry.Geometry{
		Positions: []float32{1, 2, 3, 4, 5, 6},
		Normals:   []float32{0, 0, 1, 0, 1, 0},
		UVs:       []float32{0.25, 0.5},
	}
	got := interleave(g)
	want := []float32{
		1, 2, 3, 0, 0, 1, 0.25, 0.5,
		4, 5, 6, 0, 1, 0, 0, 0,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d floats, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}

	if interleave(&geometry.Geometry{}) != nil {
		t.Error("expected nil for empty geometry")
	}
}

func TestCollectSkipsHiddenNodes(t *testing.T) {
	g := scene.NewGraph(scene.Realism)

	realism := &terrain.Mesh{}
	data := &terrain.Mesh{}
	if _, err := g.AddPair("terrain", scene.NewTerrainNode("tr", realism), scene.NewTerrainNode("td", data)); err != nil {
		t.Fatal(err)
	}
	veg := &scene.Vegetation{Geometry: &geometry.Geometry{}, Instances: &instancing.AttributeSet{}}
	bare := &scene.Vegetation{}
	if _, err := g.AddPair("veg", scene.NewVegetationNode("vr", veg), scene.NewVegetationNode("vd", bare)); err != nil {
		t.Fatal(err)
	}

	list := collect(g)
	if len(list.terrain) != 1 || list.terrain[0] != realism {
		t.Errorf("expected only realism terrain, got %d meshes", len(list.terrain))
	}
	if len(list.vegetation) != 1 || list.vegetation[0] != veg {
		t.Errorf("expected only realism vegetation, got %d", len(list.vegetation))
	}

	g.SetViewMode(scene.Data)
	list = collect(g)
	if len(list.terrain) != 1 || list.terrain[0] != data {
		t.Error("expected data terrain after switching view")
	}
	// The data vegetation has nothing to draw.
	if len(list.vegetation) != 0 {
		t.Errorf("expected incomplete vegetation skipped, got %d", len(list.vegetation))
	}
}
