// Package visualization renders simulated clicks on top of volume slices.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"

	"clicksim3d/internal/models"
)

// Marker colours.
var (
	PositiveColor = color.NRGBA{R: 0, G: 220, B: 0, A: 255}
	NegativeColor = color.NRGBA{R: 230, G: 0, B: 0, A: 255}
)

// Viewer renders slices of one volume.
type Viewer struct {
	// volumeData holds one volume in raster order
	volumeData []float64

	shape models.Shape

	// maxValue maps to white
	maxValue float64
}

// NewViewer creates a viewer for volumeData. Values are scaled so that
// maxValue is white.
func NewViewer(volumeData []float64, shape models.Shape, maxValue float64) (*Viewer, error) {
	if len(volumeData) != shape.Voxels() {
		return nil, fmt.Errorf("%w: %d values for %s", models.ErrShapeMismatch, len(volumeData), shape)
	}
	if maxValue <= 0 {
		return nil, fmt.Errorf("maxValue must be positive, got %g", maxValue)
	}
	return &Viewer{volumeData: volumeData, shape: shape, maxValue: maxValue}, nil
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	s := v.shape

	var (
		img *image.Gray
		at  func(col, row int) int
	)
	switch axis {
	case "x", "X":
		if position >= s.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, s.Width)
		}
		img = image.NewGray(image.Rect(0, 0, s.Depth, s.Height))
		at = func(z, y int) int { return s.Index(models.Point{Z: z, Y: y, X: position}) }
	case "y", "Y":
		if position >= s.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, s.Height)
		}
		img = image.NewGray(image.Rect(0, 0, s.Width, s.Depth))
		at = func(x, z int) int { return s.Index(models.Point{Z: z, Y: position, X: x}) }
	case "z", "Z":
		if position >= s.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, s.Depth)
		}
		img = image.NewGray(image.Rect(0, 0, s.Width, s.Height))
		at = func(x, y int) int { return s.Index(models.Point{Z: position, Y: y, X: x}) }
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	b := img.Bounds()
	for row := 0; row < b.Dy(); row++ {
		for col := 0; col < b.Dx(); col++ {
			value := math.Max(0, math.Min(255, v.volumeData[at(col, row)]/v.maxValue*255))
			img.SetGray(col, row, color.Gray{Y: uint8(math.Round(value))})
		}
	}
	return img, nil
}

// RenderClicks draws the z-slice and marks every click lying on it: a
// filled pixel at the click with a one-pixel cross around it.
func (v *Viewer) RenderClicks(z int, clicks models.ClickSet) (*image.NRGBA, error) {
	slice, err := v.ExtractSlice("z", z)
	if err != nil {
		return nil, err
	}
	img := imaging.Clone(slice)

	for _, c := range clicks {
		if c.Point.Z != z {
			continue
		}
		if !v.shape.Contains(c.Point) {
			return nil, fmt.Errorf("click %v outside volume %s", c.Point, v.shape)
		}
		mark := NegativeColor
		if c.Label == models.Positive {
			mark = PositiveColor
		}
		for _, d := range [][2]int{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			x, y := c.Point.X+d[0], c.Point.Y+d[1]
			if image.Pt(x, y).In(img.Bounds()) {
				img.SetNRGBA(x, y, mark)
			}
		}
	}
	return img, nil
}

// SaveOverlay upscales img by scale with nearest-neighbour sampling, so
// voxels stay crisp, and saves it. The format follows the file extension.
func SaveOverlay(img image.Image, filename string, scale int) error {
	if scale < 1 {
		return fmt.Errorf("scale must be at least 1, got %d", scale)
	}
	b := img.Bounds()
	out := imaging.Resize(img, b.Dx()*scale, b.Dy()*scale, imaging.NearestNeighbor)
	return imaging.Save(out, filename)
}

// SaveOverlays writes one PNG per z-slice that carries a click for entry,
// named overlay_eEEE_zZZZ.png, and returns the written paths in z order.
func (v *Viewer) SaveOverlays(entry int, clicks models.ClickSet, outputDir string, scale int) ([]string, error) {
	var own models.ClickSet
	slices := map[int]bool{}
	for _, c := range clicks {
		if c.Entry == entry {
			own = append(own, c)
			slices[c.Point.Z] = true
		}
	}
	if len(own) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	zs := make([]int, 0, len(slices))
	for z := range slices {
		zs = append(zs, z)
	}
	sort.Ints(zs)

	paths := make([]string, 0, len(zs))
	for _, z := range zs {
		img, err := v.RenderClicks(z, own)
		if err != nil {
			return nil, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("overlay_e%03d_z%03d.png", entry, z))
		if err := SaveOverlay(img, filename, scale); err != nil {
			return nil, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
