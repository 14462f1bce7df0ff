// Package loader reads and writes volumes stored as directories of 2D slices.
//
// Each file in a directory is one z-slice. Slices are ordered by the number
// embedded in their filename and converted to 8-bit grey levels, so an
// intensity threshold such as 170 means the same thing for every format.
package loader

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"clicksim3d/internal/models"
)

// ErrNoSlices is returned for a directory without any supported image.
var ErrNoSlices = errors.New("no slice images found")

// MaxGrey is the largest grey level a slice can hold.
const MaxGrey = 255.0

var extensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".tif": true, ".tiff": true, ".bmp": true,
}

// Batch is a stack of volumes read from several slice directories.
type Batch struct {
	N     int
	Shape models.Shape
	// Grey holds N volumes of grey levels in [0, MaxGrey], raster order.
	Grey []float64
}

// LoadBatch reads one volume per directory. All volumes must have the same
// slice count and slice size.
func LoadBatch(dirs []string) (*Batch, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: no directories given", ErrNoSlices)
	}
	b := &Batch{N: len(dirs)}
	for i, dir := range dirs {
		grey, shape, err := LoadVolume(dir)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			b.Shape = shape
			b.Grey = make([]float64, 0, len(dirs)*shape.Voxels())
		} else if shape != b.Shape {
			return nil, fmt.Errorf("%w: %s is %s, %s is %s",
				models.ErrShapeMismatch, dir, shape, dirs[0], b.Shape)
		}
		b.Grey = append(b.Grey, grey...)
	}
	return b, nil
}

// Probabilities maps grey levels to [0, 1].
func (b *Batch) Probabilities() (*models.ProbabilityVolume, error) {
	data := make([]float64, len(b.Grey))
	for i, g := range b.Grey {
		data[i] = g / MaxGrey
	}
	return models.NewProbabilityVolume(b.N, b.Shape, data)
}

// Labels uses each grey level as an integer label.
func (b *Batch) Labels() (*models.LabelVolume, error) {
	data := make([]int32, len(b.Grey))
	for i, g := range b.Grey {
		data[i] = int32(g)
	}
	return models.NewLabelVolume(b.N, b.Shape, data)
}

// Intensities keeps the grey levels as raw intensities.
func (b *Batch) Intensities() (*models.IntensityVolume, error) {
	return models.NewIntensityVolume(b.N, b.Shape, append([]float64(nil), b.Grey...))
}

// ProbabilityStack loads a prediction batch, one directory per entry.
func ProbabilityStack(dirs []string) (*models.ProbabilityVolume, error) {
	b, err := LoadBatch(dirs)
	if err != nil {
		return nil, err
	}
	return b.Probabilities()
}

// LabelStack loads a reference label batch, one directory per entry.
func LabelStack(dirs []string) (*models.LabelVolume, error) {
	b, err := LoadBatch(dirs)
	if err != nil {
		return nil, err
	}
	return b.Labels()
}

// IntensityStack loads a raw image batch, one directory per entry.
func IntensityStack(dirs []string) (*models.IntensityVolume, error) {
	b, err := LoadBatch(dirs)
	if err != nil {
		return nil, err
	}
	return b.Intensities()
}

// LoadVolume reads the slices of dir into one volume of grey levels.
func LoadVolume(dir string) ([]float64, models.Shape, error) {
	files, err := SliceFiles(dir)
	if err != nil {
		return nil, models.Shape{}, err
	}

	var (
		shape models.Shape
		grey  []float64
	)
	for z, name := range files {
		img, err := imaging.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, models.Shape{}, fmt.Errorf("failed to load slice %s: %w", name, err)
		}
		bounds := img.Bounds()
		if z == 0 {
			shape = models.Shape{Depth: len(files), Height: bounds.Dy(), Width: bounds.Dx()}
			grey = make([]float64, 0, shape.Voxels())
		} else if bounds.Dx() != shape.Width || bounds.Dy() != shape.Height {
			return nil, models.Shape{}, fmt.Errorf("%w: slice %s is %dx%d, expected %dx%d",
				models.ErrShapeMismatch, name, bounds.Dy(), bounds.Dx(), shape.Height, shape.Width)
		}
		grey = append(grey, imageToGrey(img)...)
	}
	return grey, shape, nil
}

// SliceFiles lists the supported images in dir ordered by the number in
// their filename.
func SliceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSlices, dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})
	return files, nil
}

// extractNumber joins the digits of a filename into one number, 0 if none.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

// imageToGrey converts one slice to grey levels in raster order.
func imageToGrey(img image.Image) []float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			out[y*width+x] = float64(g.Y)
		}
	}
	return out
}

// SaveVolume writes grey as one slice_NNN file per z-slice. ext selects the
// format: .tif/.tiff (deflate compressed), .bmp, or anything imaging can
// encode such as .png.
func SaveVolume(dir string, grey []float64, shape models.Shape, ext string) error {
	if len(grey) != shape.Voxels() {
		return fmt.Errorf("%w: %d values for %s", models.ErrShapeMismatch, len(grey), shape)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating slice directory: %w", err)
	}

	plane := shape.Height * shape.Width
	for z := 0; z < shape.Depth; z++ {
		img := image.NewGray(image.Rect(0, 0, shape.Width, shape.Height))
		for i, v := range grey[z*plane : (z+1)*plane] {
			img.Pix[i] = clampGrey(v)
		}
		path := filepath.Join(dir, fmt.Sprintf("slice_%03d%s", z, ext))
		if err := saveSlice(path, img); err != nil {
			return fmt.Errorf("failed to save slice %d: %w", z, err)
		}
	}
	return nil
}

func saveSlice(path string, img *image.Gray) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".tif" && ext != ".tiff" && ext != ".bmp" {
		return imaging.Save(img, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if ext == ".bmp" {
		err = bmp.Encode(f, img)
	} else {
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func clampGrey(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= MaxGrey:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
