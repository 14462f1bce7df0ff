package distance

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clicksim3d/internal/models"
)

// bruteForce is the definition: distance to the nearest background voxel,
// with the outside counting as background when blackBorder is set.
func bruteForce(mask []bool, shape models.Shape, blackBorder bool) []float64 {
	out := make([]float64, len(mask))
	for idx, fg := range mask {
		if !fg {
			continue
		}
		p := shape.PointAt(idx)
		best := math.Inf(1)
		for j, other := range mask {
			if other {
				continue
			}
			q := shape.PointAt(j)
			dz, dy, dx := float64(p.Z-q.Z), float64(p.Y-q.Y), float64(p.X-q.X)
			best = math.Min(best, math.Sqrt(dz*dz+dy*dy+dx*dx))
		}
		if blackBorder {
			best = math.Min(best, borderDistance(shape, voxelAt(shape, idx)))
		}
		out[idx] = best
	}
	return out
}

func cubeMask(shape models.Shape, from, to models.Point) []bool {
	mask := make([]bool, shape.Voxels())
	for z := from.Z; z < to.Z; z++ {
		for y := from.Y; y < to.Y; y++ {
			for x := from.X; x < to.X; x++ {
				mask[shape.Index(models.Point{Z: z, Y: y, X: x})] = true
			}
		}
	}
	return mask
}

func TestNew(t *testing.T) {
	e, err := New("")
	require.NoError(t, err)
	assert.IsType(t, Exact{}, e)

	e, err = New(EngineKDTree)
	require.NoError(t, err)
	assert.IsType(t, KDTree{}, e)

	_, err = New("chamfer")
	assert.ErrorIs(t, err, ErrUnknownEngine)
	assert.Equal(t, []string{"exact", "kdtree"}, Engines())
}

func TestPadCrop(t *testing.T) {
	shape := models.Shape{Depth: 2, Height: 3, Width: 4}
	data := make([]int, shape.Voxels())
	for i := range data {
		data[i] = i + 1
	}

	padded, pshape := Pad(data, shape, 1, 0)
	assert.Equal(t, models.Shape{Depth: 4, Height: 5, Width: 6}, pshape)
	assert.Len(t, padded, pshape.Voxels())
	assert.Equal(t, 0, padded[0])
	assert.Equal(t, data[0], padded[pshape.Index(models.Point{Z: 1, Y: 1, X: 1})])

	cropped, cshape := Crop(padded, pshape, 1)
	assert.Equal(t, shape, cshape)
	assert.Equal(t, data, cropped)
	// Pad never aliases its input
	padded[pshape.Index(models.Point{Z: 1, Y: 1, X: 1})] = -1
	assert.Equal(t, 1, data[0])
}

func TestExactCubeDepth(t *testing.T) {
	shape := models.Shape{Depth: 7, Height: 7, Width: 7}
	mask := cubeMask(shape, models.Point{Z: 1, Y: 1, X: 1}, models.Point{Z: 6, Y: 6, X: 6})

	field, err := Exact{}.Transform(mask, shape, true, 2)
	require.NoError(t, err)

	assert.Equal(t, 0.0, field[0])
	assert.Equal(t, 1.0, field[shape.Index(models.Point{Z: 1, Y: 1, X: 1})])
	assert.Equal(t, 3.0, field[shape.Index(models.Point{Z: 3, Y: 3, X: 3})])
	assert.Equal(t, 3.0, Max(field))
}

func TestBlackBorder(t *testing.T) {
	shape := models.Shape{Depth: 5, Height: 5, Width: 5}
	mask := cubeMask(shape, models.Point{}, models.Point{Z: 5, Y: 5, X: 5})

	for _, engine := range []Engine{Exact{}, KDTree{}} {
		field, err := engine.Transform(mask, shape, true, 1)
		require.NoError(t, err)
		assert.Equal(t, 1.0, field[shape.Index(models.Point{})])
		assert.Equal(t, 2.0, field[shape.Index(models.Point{Z: 1, Y: 2, X: 2})])
		assert.Equal(t, 3.0, field[shape.Index(models.Point{Z: 2, Y: 2, X: 2})])

		field, err = engine.Transform(mask, shape, false, 1)
		require.NoError(t, err)
		for _, v := range field {
			assert.True(t, math.IsInf(v, 1))
		}
	}
}

func TestShapeMismatch(t *testing.T) {
	shape := models.Shape{Depth: 2, Height: 2, Width: 2}
	_, err := Exact{}.Transform(make([]bool, 7), shape, true, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = KDTree{}.Transform(make([]bool, 9), shape, true, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMaxIgnoresInfinity(t *testing.T) {
	assert.Equal(t, 0.0, Max(nil))
	assert.Equal(t, 2.5, Max([]float64{0, 2.5, math.Inf(1), 1}))
}

func TestEnginesAgreeWithDefinition(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("exact and kd-tree engines match brute force", prop.ForAll(
		func(dims []int, bits []bool, blackBorder bool, workers int) bool {
			shape := models.Shape{Depth: dims[0], Height: dims[1], Width: dims[2]}
			mask := bits[:shape.Voxels()]
			want := bruteForce(mask, shape, blackBorder)

			for _, engine := range []Engine{Exact{}, KDTree{}} {
				got, err := engine.Transform(mask, shape, blackBorder, workers)
				if err != nil || len(got) != len(want) {
					return false
				}
				for i := range want {
					if math.IsInf(want[i], 1) {
						if !math.IsInf(got[i], 1) {
							return false
						}
						continue
					}
					if math.Abs(got[i]-want[i]) > 1e-9 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(3, gen.IntRange(1, 6)),
		gen.SliceOfN(216, gen.Bool()),
		gen.Bool(),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
