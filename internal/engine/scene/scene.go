// Package scene holds the renderable scene graph for one study area: terrain
// and vegetation nodes, grouped into realism/data pairs whose visibility is
// switched together.
package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/landsim-viewer/internal/engine/geometry"
	"github.com/Faultbox/landsim-viewer/internal/engine/material"
	"github.com/Faultbox/landsim-viewer/internal/engine/terrain"
	"github.com/Faultbox/landsim-viewer/internal/instancing"
)

// Graph errors.
var (
	ErrDuplicateNode = errors.New("scene: node name already in graph")
	ErrUnknownView   = errors.New("scene: unknown view mode")
)

// ViewMode selects which member of every pair is visible.
type ViewMode int

const (
	Realism ViewMode = iota
	Data
)

// String returns the config spelling of the mode.
func (m ViewMode) String() string {
	if m == Data {
		return "data"
	}
	return "realism"
}

// ParseViewMode parses "realism" or "data".
func ParseViewMode(s string) (ViewMode, error) {
	switch s {
	case "realism":
		return Realism, nil
	case "data":
		return Data, nil
	}
	return Realism, fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Vegetation is one instanced draw: a shared geometry repeated at every
// occupied cell of one vegetation type.
type Vegetation struct {
	Type      string
	Geometry  *geometry.Geometry
	Instances *instancing.AttributeSet
	Material  *material.Vegetation
}

// Release frees the instance buffers and material state. The geometry is
// shared between views and owned by the asset repository.
func (v *Vegetation) Release() {
	if v.Instances != nil {
		v.Instances.Release()
	}
	if v.Material != nil {
		v.Material.Release()
	}
}

// Node is a named element of the graph. A node carries at most one of
// Terrain or Vegetation; group nodes carry neither.
type Node struct {
	Name       string
	Visible    bool
	Terrain    *terrain.Mesh
	Vegetation *Vegetation
	Children   []*Node
}

// NewGroup returns a visible group node.
func NewGroup(name string, children ...*Node) *Node {
	return &Node{Name: name, Visible: true, Children: children}
}

// NewTerrainNode wraps a terrain mesh.
func NewTerrainNode(name string, mesh *terrain.Mesh) *Node {
	return &Node{Name: name, Visible: true, Terrain: mesh}
}

// NewVegetationNode wraps an instanced vegetation draw.
func NewVegetationNode(name string, v *Vegetation) *Node {
	return &Node{Name: name, Visible: true, Vegetation: v}
}

// Add appends a child.
func (n *Node) Add(child *Node) {
	n.Children = append(n.Children, child)
}

// Walk visits n and its descendants depth-first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// WalkVisible is like Walk but skips hidden subtrees.
func (n *Node) WalkVisible(fn func(*Node) bool) bool {
	if !n.Visible {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.WalkVisible(fn) {
			return false
		}
	}
	return true
}

// release frees backend resources of the whole subtree.
func (n *Node) release() {
	n.Walk(func(c *Node) bool {
		if c.Terrain != nil {
			c.Terrain.Release()
		}
		if c.Vegetation != nil {
			c.Vegetation.Release()
		}
		return true
	})
}

// Pair is a realism/data couple registered under one top-level name.
type Pair struct {
	Name    string
	Realism *Node
	Data    *Node
}

func (p *Pair) apply(mode ViewMode) {
	p.Realism.Visible = mode == Realism
	p.Data.Visible = mode == Data
}

// Graph is the scene root. It is mutated only from the render goroutine.
type Graph struct {
	root    *Node
	pairs   map[string]*Pair
	mode    ViewMode
	version uint64
}

// NewGraph returns an empty graph showing mode.
func NewGraph(mode ViewMode) *Graph {
	return &Graph{
		root:  NewGroup("root"),
		pairs: make(map[string]*Pair),
		mode:  mode,
	}
}

// Root returns the root node.
func (g *Graph) Root() *Node {
	return g.root
}

// Len returns the number of top-level nodes.
func (g *Graph) Len() int {
	return len(g.root.Children)
}

// Version increases on every structural or visibility change.
func (g *Graph) Version() uint64 {
	return g.version
}

// Touch records a change made directly to node contents, such as a material
// texture swap, so renderers redraw.
func (g *Graph) Touch() {
	g.version++
}

// Add inserts a top-level node.
func (g *Graph) Add(n *Node) error {
	if g.Find(n.Name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.Name)
	}
	g.root.Add(n)
	g.version++
	return nil
}

// AddPair inserts a top-level group holding realism and data, and keeps their
// visibility tied to the graph's view mode.
func (g *Graph) AddPair(name string, realism, data *Node) (*Pair, error) {
	if err := g.Add(NewGroup(name, realism, data)); err != nil {
		return nil, err
	}
	p := &Pair{Name: name, Realism: realism, Data: data}
	p.apply(g.mode)
	g.pairs[name] = p
	return p, nil
}

// Pair returns the pair registered under name, or nil.
func (g *Graph) Pair(name string) *Pair {
	return g.pairs[name]
}

// Find returns the first node called name, searching depth-first.
func (g *Graph) Find(name string) *Node {
	var found *Node
	for _, c := range g.root.Children {
		c.Walk(func(n *Node) bool {
			if n.Name == name {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			break
		}
	}
	return found
}

// Walk visits every node below the root.
func (g *Graph) Walk(fn func(*Node) bool) {
	for _, c := range g.root.Children {
		if !c.Walk(fn) {
			return
		}
	}
}

// Remove detaches the top-level node called name and releases its backend
// resources before returning.
func (g *Graph) Remove(name string) bool {
	for i, c := range g.root.Children {
		if c.Name != name {
			continue
		}
		g.root.Children = append(g.root.Children[:i], g.root.Children[i+1:]...)
		delete(g.pairs, name)
		c.release()
		g.version++
		return true
	}
	return false
}

// Clear removes every top-level node and returns how many were removed.
func (g *Graph) Clear() int {
	names := make([]string, 0, len(g.root.Children))
	for _, c := range g.root.Children {
		names = append(names, c.Name)
	}
	for _, name := range names {
		g.Remove(name)
	}
	return len(names)
}

// ViewMode returns the current mode.
func (g *Graph) ViewMode() ViewMode {
	return g.mode
}

// SetViewMode switches every pair at once. It reports whether anything changed.
func (g *Graph) SetViewMode(mode ViewMode) bool {
	if mode == g.mode {
		return false
	}
	g.mode = mode
	for _, p := range g.pairs {
		p.apply(mode)
	}
	g.version++
	return true
}
