// Package components labels connected components of boolean volumes.
//
// The voxel grid is exposed to gonum as an implicit undirected graph: every
// foreground voxel is a node and adjacent foreground voxels share an edge.
// Nothing is materialised beyond the traversal state, and because nodes are
// enumerated in raster order, components are discovered (and labelled) in
// the order of their first voxel.
package components

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"clicksim3d/internal/models"
)

// Connectivity is the neighbourhood that joins two foreground voxels.
type Connectivity int

const (
	// Faces joins voxels sharing a face (6 neighbours).
	Faces Connectivity = 6
	// Edges also joins voxels sharing an edge (18 neighbours).
	Edges Connectivity = 18
	// Corners also joins voxels sharing a corner (26 neighbours).
	Corners Connectivity = 26
)

// Valid reports whether c is one of the supported neighbourhoods.
func (c Connectivity) Valid() bool {
	return c == Faces || c == Edges || c == Corners
}

// Region describes one connected component.
type Region struct {
	// Label is the 1-based component id written into Labeling.Labels.
	Label int32
	// Area is the number of voxels.
	Area int
	// Voxels are the raster offsets of the member voxels, ascending.
	Voxels []int
}

// Contains reports whether the raster offset idx belongs to the region.
func (r Region) Contains(idx int) bool {
	i := sort.SearchInts(r.Voxels, idx)
	return i < len(r.Voxels) && r.Voxels[i] == idx
}

// Labeling is the result of Label.
type Labeling struct {
	Shape models.Shape
	// Labels holds 0 for background and the component label otherwise.
	Labels []int32
	// Regions are ordered by label.
	Regions []Region
}

// Largest returns the region with the most voxels. Ties go to the region
// labelled first. ok is false when there are no regions.
func (l Labeling) Largest() (r Region, ok bool) {
	for _, reg := range l.Regions {
		if reg.Area > r.Area {
			r, ok = reg, true
		}
	}
	return r, ok
}

// Label finds the connected components of mask.
func Label(mask []bool, shape models.Shape, conn Connectivity) (Labeling, error) {
	if len(mask) != shape.Voxels() {
		return Labeling{}, fmt.Errorf("%w: %d voxels for %s", models.ErrShapeMismatch, len(mask), shape)
	}
	if !conn.Valid() {
		return Labeling{}, fmt.Errorf("components: unsupported connectivity %d", conn)
	}

	g := newVoxelGraph(mask, shape, conn)
	comps := topo.ConnectedComponents(g)

	out := Labeling{
		Shape:   shape,
		Labels:  make([]int32, len(mask)),
		Regions: make([]Region, 0, len(comps)),
	}
	for i, comp := range comps {
		label := int32(i + 1)
		voxels := make([]int, len(comp))
		for j, n := range comp {
			voxels[j] = int(n.ID())
			out.Labels[voxels[j]] = label
		}
		sort.Ints(voxels)
		out.Regions = append(out.Regions, Region{Label: label, Area: len(voxels), Voxels: voxels})
	}
	return out, nil
}

// voxelGraph is a read-only graph.Undirected over the foreground of a mask.
// Node ids are raster offsets.
type voxelGraph struct {
	mask    []bool
	shape   models.Shape
	offsets []models.Point
}

func newVoxelGraph(mask []bool, shape models.Shape, conn Connectivity) *voxelGraph {
	return &voxelGraph{mask: mask, shape: shape, offsets: neighbourhood(conn)}
}

// neighbourhood lists the relative offsets of the neighbours under conn.
func neighbourhood(conn Connectivity) []models.Point {
	var out []models.Point
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nonZero := abs(dz) + abs(dy) + abs(dx)
				if nonZero == 0 {
					continue
				}
				if (conn == Faces && nonZero > 1) || (conn == Edges && nonZero > 2) {
					continue
				}
				out = append(out, models.Point{Z: dz, Y: dy, X: dx})
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (g *voxelGraph) foreground(id int64) bool {
	return id >= 0 && id < int64(len(g.mask)) && g.mask[id]
}

func (g *voxelGraph) Node(id int64) graph.Node {
	if !g.foreground(id) {
		return nil
	}
	return simple.Node(id)
}

func (g *voxelGraph) Nodes() graph.Nodes {
	var nodes []graph.Node
	for idx, fg := range g.mask {
		if fg {
			nodes = append(nodes, simple.Node(idx))
		}
	}
	if len(nodes) == 0 {
		return graph.Empty
	}
	return iterator.NewOrderedNodes(nodes)
}

func (g *voxelGraph) From(id int64) graph.Nodes {
	if !g.foreground(id) {
		return graph.Empty
	}
	p := g.shape.PointAt(int(id))
	var nodes []graph.Node
	for _, o := range g.offsets {
		q := models.Point{Z: p.Z + o.Z, Y: p.Y + o.Y, X: p.X + o.X}
		if !g.shape.Contains(q) {
			continue
		}
		if idx := g.shape.Index(q); g.mask[idx] {
			nodes = append(nodes, simple.Node(idx))
		}
	}
	if len(nodes) == 0 {
		return graph.Empty
	}
	return iterator.NewOrderedNodes(nodes)
}

func (g *voxelGraph) HasEdgeBetween(xid, yid int64) bool {
	if xid == yid || !g.foreground(xid) || !g.foreground(yid) {
		return false
	}
	p, q := g.shape.PointAt(int(xid)), g.shape.PointAt(int(yid))
	d := models.Point{Z: q.Z - p.Z, Y: q.Y - p.Y, X: q.X - p.X}
	for _, o := range g.offsets {
		if o == d {
			return true
		}
	}
	return false
}

func (g *voxelGraph) Edge(uid, vid int64) graph.Edge {
	return g.EdgeBetween(uid, vid)
}

func (g *voxelGraph) EdgeBetween(xid, yid int64) graph.Edge {
	if !g.HasEdgeBetween(xid, yid) {
		return nil
	}
	return simple.Edge{F: simple.Node(xid), T: simple.Node(yid)}
}
