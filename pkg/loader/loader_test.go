package loader

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clicksim3d/internal/models"
)

// writeSlice saves a width x height grey slice whose every pixel is value.
func writeSlice(t *testing.T, path string, width, height int, value uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	require.NoError(t, imaging.Save(img, path))
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"slice_007.png", 7},
		{"/data/scan2/slice10.jpg", 10},
		{"mri.tif", 0},
		{"a1b2c3.bmp", 123},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractNumber(tt.name), tt.name)
	}
}

func TestSliceFilesOrdering(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"slice10.png", "slice2.png", "slice1.png"} {
		writeSlice(t, filepath.Join(dir, name), 2, 2, 0)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	files, err := SliceFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"slice1.png", "slice2.png", "slice10.png"}, files)
}

func TestSliceFilesEmpty(t *testing.T) {
	_, err := SliceFiles(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSlices)

	_, err = SliceFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadVolume(t *testing.T) {
	dir := t.TempDir()
	writeSlice(t, filepath.Join(dir, "s1.png"), 3, 2, 10)
	writeSlice(t, filepath.Join(dir, "s2.png"), 3, 2, 200)

	grey, shape, err := LoadVolume(dir)
	require.NoError(t, err)
	assert.Equal(t, models.Shape{Depth: 2, Height: 2, Width: 3}, shape)
	require.Len(t, grey, 12)
	assert.Equal(t, 10.0, grey[0])
	assert.Equal(t, 200.0, grey[6])
}

func TestLoadVolumeRejectsUnevenSlices(t *testing.T) {
	dir := t.TempDir()
	writeSlice(t, filepath.Join(dir, "s1.png"), 3, 2, 0)
	writeSlice(t, filepath.Join(dir, "s2.png"), 2, 2, 0)

	_, _, err := LoadVolume(dir)
	assert.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestSaveVolumeRoundTrip(t *testing.T) {
	shape := models.Shape{Depth: 3, Height: 2, Width: 4}
	grey := make([]float64, shape.Voxels())
	for i := range grey {
		grey[i] = float64(i * 10)
	}

	for _, ext := range []string{".png", ".tif", ".bmp"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, SaveVolume(dir, grey, shape, ext))

			got, gotShape, err := LoadVolume(dir)
			require.NoError(t, err)
			assert.Equal(t, shape, gotShape)
			assert.Equal(t, grey, got)
		})
	}

	assert.ErrorIs(t, SaveVolume(t.TempDir(), grey[:5], shape, ".png"), models.ErrShapeMismatch)
}

func TestLoadBatch(t *testing.T) {
	shape := models.Shape{Depth: 2, Height: 2, Width: 2}
	first, second := t.TempDir(), t.TempDir()
	require.NoError(t, SaveVolume(first, []float64{0, 255, 0, 255, 0, 0, 0, 0}, shape, ".png"))
	require.NoError(t, SaveVolume(second, []float64{180, 180, 0, 0, 1, 1, 1, 1}, shape, ".tif"))

	b, err := LoadBatch([]string{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, b.N)
	assert.Equal(t, shape, b.Shape)

	probs, err := b.Probabilities()
	require.NoError(t, err)
	assert.Equal(t, 1.0, probs.Data[1])
	assert.True(t, probs.Mask().Data[1])
	assert.False(t, probs.Mask().Data[0])

	labels, err := b.Labels()
	require.NoError(t, err)
	assert.Equal(t, int32(1), labels.Entry(1)[4])
	assert.Equal(t, 6, labels.Foreground().Count(1))

	intensity, err := b.Intensities()
	require.NoError(t, err)
	assert.Equal(t, 2, intensity.Above(170).Count(1))

	// intensities own their data
	intensity.Data[0] = -1
	assert.Equal(t, 0.0, b.Grey[0])
}

func TestStackHelpers(t *testing.T) {
	shape := models.Shape{Depth: 1, Height: 2, Width: 2}
	dir := t.TempDir()
	require.NoError(t, SaveVolume(dir, []float64{0, 3, 200, 255}, shape, ".png"))

	p, err := ProbabilityStack([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, p.N)

	l, err := LabelStack([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 3, 200, 255}, l.Data)

	v, err := IntensityStack([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 200, 255}, v.Data)

	_, err = LabelStack(nil)
	assert.ErrorIs(t, err, ErrNoSlices)
}

func TestLoadBatchShapeMismatch(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, SaveVolume(a, make([]float64, 8), models.Shape{Depth: 2, Height: 2, Width: 2}, ".png"))
	require.NoError(t, SaveVolume(b, make([]float64, 4), models.Shape{Depth: 1, Height: 2, Width: 2}, ".png"))

	_, err := LoadBatch([]string{a, b})
	assert.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestClampGrey(t *testing.T) {
	assert.Equal(t, uint8(0), clampGrey(-4))
	assert.Equal(t, uint8(255), clampGrey(300))
	assert.Equal(t, uint8(128), clampGrey(127.6))
	assert.Equal(t, color.Gray{Y: 7}, color.Gray{Y: clampGrey(7)})
}
