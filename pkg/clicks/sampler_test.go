package clicks

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clicksim3d/internal/metrics"
	"clicksim3d/internal/models"
	"clicksim3d/pkg/distance"
	"clicksim3d/pkg/random"
)

var cube4 = models.Shape{Depth: 4, Height: 4, Width: 4}

// box reports whether p lies in [from, to) on every axis.
func box(from, to models.Point) func(models.Point) bool {
	return func(p models.Point) bool {
		return p.Z >= from.Z && p.Z < to.Z &&
			p.Y >= from.Y && p.Y < to.Y &&
			p.X >= from.X && p.X < to.X
	}
}

func none(models.Point) bool { return false }

func predicted(t *testing.T, n int, shape models.Shape, in func(entry int, p models.Point) bool) *models.ProbabilityVolume {
	t.Helper()
	v, err := models.NewProbabilityVolume(n, shape, nil)
	require.NoError(t, err)
	for i := range v.Data {
		if in(i/shape.Voxels(), shape.PointAt(i%shape.Voxels())) {
			v.Data[i] = 1
		}
	}
	return v
}

func reference(t *testing.T, n int, shape models.Shape, in func(entry int, p models.Point) bool) *models.LabelVolume {
	t.Helper()
	v, err := models.NewLabelVolume(n, shape, nil)
	require.NoError(t, err)
	for i := range v.Data {
		if in(i/shape.Voxels(), shape.PointAt(i%shape.Voxels())) {
			v.Data[i] = 1
		}
	}
	return v
}

// same applies one region to every entry.
func same(f func(models.Point) bool) func(int, models.Point) bool {
	return func(_ int, p models.Point) bool { return f(p) }
}

func sampler(t *testing.T, m Method, opts Options) Sampler {
	t.Helper()
	s, err := New(m, opts)
	require.NoError(t, err)
	require.Equal(t, m, s.Method())
	return s
}

func TestNewAndParseMethod(t *testing.T) {
	assert.Equal(t, []Method{
		ThresholdOnly, NaiveOutside, GroundTruth, DistanceTransform, BatchedUnique, LargestComponent,
	}, Methods())

	for _, m := range Methods() {
		got, err := ParseMethod(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
		sampler(t, m, Options{})
	}

	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, GroundTruth, m)

	_, err = ParseMethod("random_walk")
	assert.ErrorIs(t, err, ErrUnknownMethod)
	_, err = New("random_walk", Options{})
	assert.ErrorIs(t, err, ErrUnknownMethod)
	_, err = New(LargestComponent, Options{Connectivity: 4})
	assert.Error(t, err)

	var omitting []Method
	for _, r := range Requirements() {
		if r.MayOmit {
			omitting = append(omitting, r.Method)
		}
	}
	assert.Equal(t, []Method{BatchedUnique, LargestComponent}, omitting)
}

func TestMissingInputs(t *testing.T) {
	pred := predicted(t, 1, cube4, same(none))
	ref := reference(t, 1, cube4, same(none))

	for _, r := range Requirements() {
		t.Run(string(r.Method), func(t *testing.T) {
			s := sampler(t, r.Method, Options{})

			_, err := s.Sample(Inputs{}, random.New(1))
			assert.ErrorIs(t, err, ErrMissingInput)

			_, err = s.Sample(Inputs{Predicted: pred}, random.New(1))
			if r.Reference || r.Intensity {
				assert.ErrorIs(t, err, ErrMissingInput)
			} else {
				assert.NoError(t, err)
			}

			_, err = s.Sample(Inputs{Predicted: pred, Reference: ref}, random.New(1))
			if r.Intensity {
				assert.ErrorIs(t, err, ErrMissingInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestShapeMismatchBeforeSampling(t *testing.T) {
	pred := predicted(t, 1, cube4, same(none))
	other := models.Shape{Depth: 4, Height: 4, Width: 3}
	ref := reference(t, 1, other, same(none))
	twoRefs := reference(t, 2, cube4, same(none))
	intensity, err := models.NewIntensityVolume(1, other, nil)
	require.NoError(t, err)

	for _, m := range Methods() {
		t.Run(string(m), func(t *testing.T) {
			s := sampler(t, m, Options{})
			_, err := s.Sample(Inputs{Predicted: pred, Reference: ref, Intensity: intensity}, random.New(1))
			assert.ErrorIs(t, err, models.ErrShapeMismatch)
			_, err = s.Sample(Inputs{Predicted: pred, Reference: twoRefs}, random.New(1))
			if m == ThresholdOnly {
				assert.ErrorIs(t, err, ErrMissingInput)
			} else {
				assert.ErrorIs(t, err, models.ErrShapeMismatch)
			}
		})
	}
}

func TestGroundTruthCubeScenario(t *testing.T) {
	inCube := box(models.Point{Z: 1, Y: 1, X: 2}, models.Point{Z: 3, Y: 3, X: 4})
	in := Inputs{
		Predicted: predicted(t, 1, cube4, same(none)),
		Reference: reference(t, 1, cube4, same(inCube)),
	}
	s := sampler(t, GroundTruth, Options{})

	for seed := uint64(0); seed < 50; seed++ {
		clicks, err := s.Sample(in, random.New(seed))
		require.NoError(t, err)
		require.Len(t, clicks, 1)
		assert.Equal(t, models.Positive, clicks[0].Label)
		assert.True(t, inCube(clicks[0].Point), "seed %d: %v outside cube", seed, clicks[0].Point)
	}
}

func TestGroundTruthZeroError(t *testing.T) {
	region := box(models.Point{}, models.Point{Z: 2, Y: 4, X: 4})
	in := Inputs{
		Predicted: predicted(t, 1, cube4, same(region)),
		Reference: reference(t, 1, cube4, same(region)),
	}
	s := sampler(t, GroundTruth, Options{})

	seen := map[models.Point]bool{}
	for seed := uint64(0); seed < 200; seed++ {
		clicks, err := s.Sample(in, random.New(seed))
		require.NoError(t, err)
		require.Len(t, clicks, 1)
		assert.Equal(t, models.Negative, clicks[0].Label)
		assert.True(t, cube4.Contains(clicks[0].Point))
		seen[clicks[0].Point] = true
	}
	// the fallback is not confined to any mask
	assert.Greater(t, len(seen), 1)
	var outside bool
	for p := range seen {
		outside = outside || !region(p)
	}
	assert.True(t, outside)
}

func TestGroundTruthUsesBothErrorKinds(t *testing.T) {
	fnRegion := box(models.Point{}, models.Point{Z: 1, Y: 4, X: 4})
	fpRegion := box(models.Point{Z: 3}, models.Point{Z: 4, Y: 4, X: 4})
	in := Inputs{
		Predicted: predicted(t, 1, cube4, same(fpRegion)),
		Reference: reference(t, 1, cube4, same(fnRegion)),
	}
	s := sampler(t, GroundTruth, Options{})

	labels := map[models.Label]int{}
	for seed := uint64(0); seed < 200; seed++ {
		clicks, err := s.Sample(in, random.New(seed))
		require.NoError(t, err)
		c := clicks[0]
		labels[c.Label]++
		if c.Label == models.Positive {
			assert.True(t, fnRegion(c.Point))
		} else {
			assert.True(t, fpRegion(c.Point))
		}
	}
	assert.Greater(t, labels[models.Positive], 50)
	assert.Greater(t, labels[models.Negative], 50)
}

func TestThresholdOnly(t *testing.T) {
	intensity, err := models.NewIntensityVolume(2, cube4, nil)
	require.NoError(t, err)
	bright := box(models.Point{Z: 2, Y: 2, X: 2}, models.Point{Z: 4, Y: 4, X: 4})
	for i := 0; i < cube4.Voxels(); i++ {
		intensity.Data[i] = 100
		if bright(cube4.PointAt(i)) {
			intensity.Data[i] = 171
		}
		// entry 1 sits exactly at the threshold, which is not above it
		intensity.Data[cube4.Voxels()+i] = DefaultIntensityThreshold
	}
	in := Inputs{Predicted: predicted(t, 2, cube4, same(none)), Intensity: intensity}
	s := sampler(t, ThresholdOnly, Options{})

	for seed := uint64(0); seed < 20; seed++ {
		clicks, err := s.Sample(in, random.New(seed))
		require.NoError(t, err)
		require.Len(t, clicks, 2)
		assert.Equal(t, models.Positive, clicks[0].Label)
		assert.True(t, bright(clicks[0].Point))
		assert.Equal(t, models.Negative, clicks[1].Label)
		assert.True(t, cube4.Contains(clicks[1].Point))
	}

	// a lower threshold turns the second entry bright as well
	s = sampler(t, ThresholdOnly, Options{IntensityThreshold: Threshold(150)})
	clicks, err := s.Sample(in, random.New(3))
	require.NoError(t, err)
	assert.Equal(t, models.Positive, clicks[1].Label)
}

func TestThresholdOnlyZeroCutoff(t *testing.T) {
	shape := models.Shape{Depth: 2, Height: 2, Width: 2}
	intensity, err := models.NewIntensityVolume(1, shape, nil)
	require.NoError(t, err)
	dim := models.Point{Z: 1, Y: 0, X: 1}
	intensity.Data[shape.Index(dim)] = 50
	in := Inputs{Predicted: predicted(t, 1, shape, same(none)), Intensity: intensity}

	zero := sampler(t, ThresholdOnly, Options{IntensityThreshold: Threshold(0)})
	for seed := uint64(0); seed < 10; seed++ {
		clicks, err := zero.Sample(in, random.New(seed))
		require.NoError(t, err)
		require.Len(t, clicks, 1)
		assert.Equal(t, models.Positive, clicks[0].Label)
		assert.Equal(t, dim, clicks[0].Point)
	}

	// nil keeps the default cutoff, so the dim voxel is not a reference
	clicks, err := sampler(t, ThresholdOnly, Options{}).Sample(in, random.New(1))
	require.NoError(t, err)
	assert.Equal(t, models.Negative, clicks[0].Label)
}

func TestNaiveOutside(t *testing.T) {
	region := box(models.Point{Z: 1, Y: 1, X: 1}, models.Point{Z: 2, Y: 3, X: 3})
	in := Inputs{Predicted: predicted(t, 2, cube4, func(entry int, p models.Point) bool {
		return entry == 0 && region(p)
	})}
	s := sampler(t, NaiveOutside, Options{})

	for seed := uint64(0); seed < 20; seed++ {
		clicks, err := s.Sample(in, random.New(seed))
		require.NoError(t, err)
		require.Len(t, clicks, 2)
		assert.Equal(t, models.Positive, clicks[0].Label)
		assert.True(t, region(clicks[0].Point))
		assert.Equal(t, models.Negative, clicks[1].Label)
		assert.True(t, cube4.Contains(clicks[1].Point))
	}
}

func TestDistanceTransformPicksDeeperRegion(t *testing.T) {
	shape := models.Shape{Depth: 8, Height: 8, Width: 8}
	big := box(models.Point{Z: 1, Y: 1, X: 1}, models.Point{Z: 7, Y: 7, X: 7})
	speck := box(models.Point{}, models.Point{Z: 1, Y: 1, X: 1})
	interior := box(models.Point{Z: 2, Y: 2, X: 2}, models.Point{Z: 6, Y: 6, X: 6})

	tests := []struct {
		name   string
		pred   func(models.Point) bool
		ref    func(models.Point) bool
		label  models.Label
		engine distance.Engine
	}{
		{"missed cube", speck, big, models.Positive, distance.Exact{}},
		{"spurious cube", big, speck, models.Negative, distance.Exact{}},
		{"missed cube kdtree", speck, big, models.Positive, distance.KDTree{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Inputs{
				Predicted: predicted(t, 1, shape, same(tt.pred)),
				Reference: reference(t, 1, shape, same(tt.ref)),
			}
			s := sampler(t, DistanceTransform, Options{DistanceEngine: tt.engine, DistanceWorkers: 2})
			for seed := uint64(0); seed < 20; seed++ {
				clicks, err := s.Sample(in, random.New(seed))
				require.NoError(t, err)
				require.Len(t, clicks, 1)
				assert.Equal(t, tt.label, clicks[0].Label)
				// depth 3 at the centre, so the zone is every voxel deeper than 1.5
				assert.True(t, interior(clicks[0].Point), "%v outside erosion zone", clicks[0].Point)
			}
		})
	}
}

func TestDistanceTransformZeroError(t *testing.T) {
	region := box(models.Point{}, models.Point{Z: 2, Y: 2, X: 2})
	in := Inputs{
		Predicted: predicted(t, 3, cube4, same(region)),
		Reference: reference(t, 3, cube4, same(region)),
	}
	clicks, err := sampler(t, DistanceTransform, Options{}).Sample(in, random.New(9))
	require.NoError(t, err)
	require.Len(t, clicks, 3)
	for i, c := range clicks {
		assert.Equal(t, i, c.Entry)
		assert.Equal(t, models.Negative, c.Label)
		assert.True(t, cube4.Contains(c.Point))
	}
}

func TestBatchedUnique(t *testing.T) {
	// entry 1 has no error, entries 0 and 2 have both kinds
	fnRegion := box(models.Point{}, models.Point{Z: 1, Y: 4, X: 4})
	fpRegion := box(models.Point{Z: 3}, models.Point{Z: 4, Y: 4, X: 4})
	in := Inputs{
		Predicted: predicted(t, 3, cube4, func(entry int, p models.Point) bool {
			return entry != 1 && fpRegion(p)
		}),
		Reference: reference(t, 3, cube4, func(entry int, p models.Point) bool {
			return entry != 1 && fnRegion(p)
		}),
	}
	s := sampler(t, BatchedUnique, Options{})

	for seed := uint64(0); seed < 20; seed++ {
		clicks, err := s.Sample(in, random.New(seed))
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, clicks.Entries())
		for _, c := range clicks {
			if c.Label == models.Positive {
				assert.True(t, fnRegion(c.Point))
			} else {
				assert.True(t, fpRegion(c.Point))
			}
		}
	}
}

func TestBatchedUniqueCoversFullBatch(t *testing.T) {
	in := Inputs{
		Predicted: predicted(t, 5, cube4, func(entry int, p models.Point) bool { return p.Z == entry%4 }),
		Reference: reference(t, 5, cube4, same(none)),
	}
	clicks, err := sampler(t, BatchedUnique, Options{}).Sample(in, random.New(4))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, clicks.Entries())
	for _, c := range clicks {
		assert.Equal(t, models.Negative, c.Label)
		assert.Equal(t, c.Entry%4, c.Point.Z)
	}
}

func TestLargestComponentFiveVersusTwenty(t *testing.T) {
	shape := models.Shape{Depth: 4, Height: 6, Width: 6}
	rod := box(models.Point{}, models.Point{Z: 1, Y: 1, X: 5})
	slab := box(models.Point{Z: 3, Y: 2, X: 1}, models.Point{Z: 4, Y: 6, X: 6})
	in := Inputs{
		Predicted: predicted(t, 2, shape, same(rod)),
		Reference: reference(t, 2, shape, func(entry int, p models.Point) bool {
			return entry == 0 && (rod(p) || slab(p))
		}),
	}
	s := sampler(t, LargestComponent, Options{Workers: 2})

	for seed := uint64(0); seed < 50; seed++ {
		clicks, err := s.Sample(in, random.New(seed))
		require.NoError(t, err)
		// entry 1 has an empty reference and is left out
		require.Len(t, clicks, 1)
		assert.Equal(t, 0, clicks[0].Entry)
		assert.Equal(t, models.Positive, clicks[0].Label)
		assert.True(t, slab(clicks[0].Point), "%v outside the 20-voxel component", clicks[0].Point)
	}
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	shape := models.Shape{Depth: 3, Height: 4, Width: 5}
	checker := func(entry int, p models.Point) bool { return (p.Z+p.Y+p.X+entry)%3 == 0 }
	stripes := func(entry int, p models.Point) bool { return (p.X+entry)%2 == 0 }
	intensity, err := models.NewIntensityVolume(6, shape, nil)
	require.NoError(t, err)
	for i := range intensity.Data {
		intensity.Data[i] = float64(i % 255)
	}
	in := Inputs{
		Predicted: predicted(t, 6, shape, checker),
		Reference: reference(t, 6, shape, stripes),
		Intensity: intensity,
	}

	for _, m := range Methods() {
		t.Run(string(m), func(t *testing.T) {
			serial, err := sampler(t, m, Options{Workers: 1}).Sample(in, random.New(42))
			require.NoError(t, err)
			parallel, err := sampler(t, m, Options{Workers: 4}).Sample(in, random.New(42))
			require.NoError(t, err)
			again, err := sampler(t, m, Options{Workers: 3}).Sample(in, random.New(42))
			require.NoError(t, err)

			assert.Equal(t, serial, parallel)
			assert.Equal(t, serial, again)
		})
	}
}

func TestAssembler(t *testing.T) {
	asm := NewAssembler(4)
	asm.Set(models.Click{Entry: 3, Label: models.Positive})
	asm.Set(models.Click{Entry: 0, Point: models.Point{Z: 1}})

	assert.Equal(t, []int{1, 2}, asm.Omitted())
	clicks := asm.ClickSet()
	assert.Equal(t, []int{0, 3}, clicks.Entries())
	assert.Equal(t, models.Point{Z: 1}, clicks[0].Point)
	assert.Equal(t, models.Positive, clicks[1].Label)
}

func TestMetricsRecorded(t *testing.T) {
	rec := metrics.NewRecorder()
	in := Inputs{
		Predicted: predicted(t, 2, cube4, same(none)),
		Reference: reference(t, 2, cube4, func(entry int, p models.Point) bool {
			return entry == 0 && p.Z == 0
		}),
	}

	_, err := sampler(t, LargestComponent, Options{Metrics: rec}).Sample(in, random.New(1))
	require.NoError(t, err)
	_, err = sampler(t, GroundTruth, Options{Metrics: rec}).Sample(in, random.New(1))
	require.NoError(t, err)

	expected := `
# HELP clicksim_omitted_total Entries left out of the click set
# TYPE clicksim_omitted_total counter
clicksim_omitted_total{method="largest_component"} 1
# HELP clicksim_fallbacks_total Entries with no error region that received a random click
# TYPE clicksim_fallbacks_total counter
clicksim_fallbacks_total{method="ground_truth"} 1
# HELP clicksim_clicks_total Total number of simulated clicks emitted
# TYPE clicksim_clicks_total counter
clicksim_clicks_total{label="negative",method="ground_truth"} 1
clicksim_clicks_total{label="positive",method="ground_truth"} 1
clicksim_clicks_total{label="positive",method="largest_component"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected),
		"clicksim_omitted_total", "clicksim_fallbacks_total", "clicksim_clicks_total"))
}
