package distance

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"clicksim3d/internal/models"
)

// KDTree answers each foreground voxel with a nearest-neighbour query against
// a k-d tree of the background voxels. It is exact but much slower than
// Exact on dense masks.
type KDTree struct{}

// Transform implements Engine.
func (KDTree) Transform(mask []bool, shape models.Shape, blackBorder bool, workers int) ([]float64, error) {
	if err := checkShape(mask, shape); err != nil {
		return nil, err
	}

	var background voxels
	for idx, fg := range mask {
		if !fg {
			background = append(background, voxelAt(shape, idx))
		}
	}
	tree := kdtree.New(background, false)

	out := make([]float64, len(mask))
	parallelFor(len(mask), workers, func(start, end int) {
		for idx := start; idx < end; idx++ {
			if !mask[idx] {
				continue
			}
			q := voxelAt(shape, idx)
			dist := math.Inf(1)
			if _, d2 := tree.Nearest(q); !math.IsInf(d2, 1) {
				dist = math.Sqrt(d2)
			}
			if blackBorder {
				dist = math.Min(dist, borderDistance(shape, q))
			}
			out[idx] = dist
		}
	})
	return out, nil
}

// borderDistance is the distance from v to the closest voxel just outside
// the volume, which always lies straight out along one axis.
func borderDistance(shape models.Shape, v voxel) float64 {
	d := math.Min(v.Z+1, float64(shape.Depth)-v.Z)
	d = math.Min(d, math.Min(v.Y+1, float64(shape.Height)-v.Y))
	return math.Min(d, math.Min(v.X+1, float64(shape.Width)-v.X))
}

// voxel is a voxel centre usable as a kdtree.Comparable.
type voxel struct {
	Z, Y, X float64
}

func voxelAt(shape models.Shape, idx int) voxel {
	p := shape.PointAt(idx)
	return voxel{Z: float64(p.Z), Y: float64(p.Y), X: float64(p.X)}
}

// Compare implements kdtree.Comparable.
func (p voxel) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(voxel)
	switch d {
	case 0:
		return p.Z - q.Z
	case 1:
		return p.Y - q.Y
	case 2:
		return p.X - q.X
	default:
		panic("illegal dimension")
	}
}

// Dims implements kdtree.Comparable.
func (p voxel) Dims() int { return 3 }

// Distance returns the squared Euclidean distance.
func (p voxel) Distance(c kdtree.Comparable) float64 {
	q := c.(voxel)
	dz := p.Z - q.Z
	dy := p.Y - q.Y
	dx := p.X - q.X
	return dz*dz + dy*dy + dx*dx
}

// voxels satisfies kdtree.Interface.
type voxels []voxel

func (p voxels) Index(i int) kdtree.Comparable         { return p[i] }
func (p voxels) Len() int                              { return len(p) }
func (p voxels) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements kdtree.Interface.
func (p voxels) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(voxelPlane{voxels: p, Dim: d}, kdtree.MedianOfRandoms(voxelPlane{voxels: p, Dim: d}, 100))
}

// voxelPlane sorts voxels along one dimension.
type voxelPlane struct {
	voxels
	kdtree.Dim
}

func (p voxelPlane) Less(i, j int) bool {
	return p.voxels[i].Compare(p.voxels[j], p.Dim) < 0
}

func (p voxelPlane) Slice(start, end int) kdtree.SortSlicer {
	return voxelPlane{voxels: p.voxels[start:end], Dim: p.Dim}
}

func (p voxelPlane) Swap(i, j int) {
	p.voxels[i], p.voxels[j] = p.voxels[j], p.voxels[i]
}
