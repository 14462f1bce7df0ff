package distance

import (
	"math"

	"clicksim3d/internal/models"
)

// far stands in for infinity inside the parabola envelope; true infinities
// would turn the intersection arithmetic into NaN.
const far = 1e20

// Exact is a separable exact Euclidean distance transform. The squared
// transform is computed one axis at a time as the lower envelope of
// parabolas (Felzenszwalb & Huttenlocher), each axis split across workers.
type Exact struct{}

// Transform implements Engine.
func (Exact) Transform(mask []bool, shape models.Shape, blackBorder bool, workers int) ([]float64, error) {
	if err := checkShape(mask, shape); err != nil {
		return nil, err
	}
	if blackBorder {
		padded, pshape := Pad(mask, shape, 1, false)
		field := edt(padded, pshape, workers)
		out, _ := Crop(field, pshape, 1)
		return out, nil
	}
	return edt(mask, shape, workers), nil
}

// edt runs the three squared passes and takes the square root.
func edt(mask []bool, shape models.Shape, workers int) []float64 {
	f := make([]float64, len(mask))
	for i, fg := range mask {
		if fg {
			f[i] = far
		}
	}

	d, h, w := shape.Depth, shape.Height, shape.Width
	plane := h * w

	// x lines: one per (z, y)
	passAxis(f, d*h, w, 1, workers, func(line int) int {
		return (line/h)*plane + (line%h)*w
	})
	// y lines: one per (z, x)
	passAxis(f, d*w, h, w, workers, func(line int) int {
		return (line/w)*plane + line%w
	})
	// z lines: one per (y, x)
	passAxis(f, h*w, d, plane, workers, func(line int) int {
		return line
	})

	for i, v := range f {
		if v >= far/2 {
			f[i] = math.Inf(1)
		} else {
			f[i] = math.Sqrt(v)
		}
	}
	return f
}

// passAxis applies the 1D transform to lines lines of length n, where line i
// starts at offset(i) and advances by stride.
func passAxis(f []float64, lines, n, stride, workers int, offset func(int) int) {
	parallelFor(lines, workers, func(start, end int) {
		buf := make([]float64, n)
		out := make([]float64, n)
		v := make([]int, n)
		z := make([]float64, n+1)
		for line := start; line < end; line++ {
			base := offset(line)
			for i := 0; i < n; i++ {
				buf[i] = f[base+i*stride]
			}
			envelope(buf, out, v, z)
			for i := 0; i < n; i++ {
				f[base+i*stride] = out[i]
			}
		}
	})
}

// envelope computes d[q] = min_p (q-p)^2 + f[p] in linear time.
func envelope(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := intersect(f, q, v[k])
		for s <= z[k] {
			k--
			s = intersect(f, q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}
	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}

func intersect(f []float64, q, p int) float64 {
	fq, fp := float64(q), float64(p)
	return ((f[q] + fq*fq) - (f[p] + fp*fp)) / (2*fq - 2*fp)
}
