package models

import (
	"errors"
	"fmt"
)

// MaskThreshold is the probability above which a predicted voxel counts as foreground.
const MaskThreshold = 0.5

// ErrShapeMismatch is returned when volumes that must line up voxel for voxel do not.
var ErrShapeMismatch = errors.New("shape mismatch")

// Shape is the spatial extent of a single volume, ordered (D, H, W).
type Shape struct {
	Depth  int
	Height int
	Width  int
}

// Voxels returns the number of voxels in one volume of this shape.
func (s Shape) Voxels() int {
	return s.Depth * s.Height * s.Width
}

// Index converts a point to its raster offset (z-major, x fastest).
func (s Shape) Index(p Point) int {
	return p.Z*s.Height*s.Width + p.Y*s.Width + p.X
}

// PointAt is the inverse of Index.
func (s Shape) PointAt(idx int) Point {
	plane := s.Height * s.Width
	return Point{
		Z: idx / plane,
		Y: (idx % plane) / s.Width,
		X: idx % s.Width,
	}
}

// Contains reports whether p lies in [0,D)x[0,H)x[0,W).
func (s Shape) Contains(p Point) bool {
	return p.Z >= 0 && p.Z < s.Depth &&
		p.Y >= 0 && p.Y < s.Height &&
		p.X >= 0 && p.X < s.Width
}

// Pad returns the shape grown by n voxels on every face.
func (s Shape) Pad(n int) Shape {
	return Shape{Depth: s.Depth + 2*n, Height: s.Height + 2*n, Width: s.Width + 2*n}
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Depth, s.Height, s.Width)
}

// Point is an integer voxel coordinate.
type Point struct {
	Z, Y, X int
}

// Grid stacks N single-channel volumes of identical shape, laid out as
// (N, 1, D, H, W) in one flat slice.
type Grid[T any] struct {
	N     int
	Shape Shape
	Data  []T
}

func newGrid[T any](n int, shape Shape, data []T) (Grid[T], error) {
	if n < 0 || shape.Depth <= 0 || shape.Height <= 0 || shape.Width <= 0 {
		return Grid[T]{}, fmt.Errorf("%w: invalid dimensions n=%d shape=%s", ErrShapeMismatch, n, shape)
	}
	if data == nil {
		data = make([]T, n*shape.Voxels())
	}
	if len(data) != n*shape.Voxels() {
		return Grid[T]{}, fmt.Errorf("%w: %d values for %d volumes of %s",
			ErrShapeMismatch, len(data), n, shape)
	}
	return Grid[T]{N: n, Shape: shape, Data: data}, nil
}

// Entry returns the voxels of batch entry i. The slice aliases the grid.
func (g Grid[T]) Entry(i int) []T {
	size := g.Shape.Voxels()
	return g.Data[i*size : (i+1)*size]
}

// SameLayout reports whether two grids have the same batch size and shape.
func SameLayout[A, B any](a Grid[A], b Grid[B]) bool {
	return a.N == b.N && a.Shape == b.Shape
}

// ProbabilityVolume holds model output probabilities in [0, 1].
type ProbabilityVolume struct {
	Grid[float64]
}

// NewProbabilityVolume wraps data as N volumes of the given shape.
// A nil data slice allocates zeros.
func NewProbabilityVolume(n int, shape Shape, data []float64) (*ProbabilityVolume, error) {
	g, err := newGrid(n, shape, data)
	if err != nil {
		return nil, err
	}
	return &ProbabilityVolume{Grid: g}, nil
}

// Mask thresholds the probabilities at MaskThreshold.
func (p *ProbabilityVolume) Mask() *Mask {
	m := NewMask(p.N, p.Shape)
	for i, v := range p.Data {
		m.Data[i] = v > MaskThreshold
	}
	return m
}

// LabelVolume holds reference labels; any positive label is foreground.
type LabelVolume struct {
	Grid[int32]
}

// NewLabelVolume wraps data as N label volumes of the given shape.
func NewLabelVolume(n int, shape Shape, data []int32) (*LabelVolume, error) {
	g, err := newGrid(n, shape, data)
	if err != nil {
		return nil, err
	}
	return &LabelVolume{Grid: g}, nil
}

// Foreground returns label > 0.
func (l *LabelVolume) Foreground() *Mask {
	m := NewMask(l.N, l.Shape)
	for i, v := range l.Data {
		m.Data[i] = v > 0
	}
	return m
}

// IntensityVolume holds raw image intensities.
type IntensityVolume struct {
	Grid[float64]
}

// NewIntensityVolume wraps data as N intensity volumes of the given shape.
func NewIntensityVolume(n int, shape Shape, data []float64) (*IntensityVolume, error) {
	g, err := newGrid(n, shape, data)
	if err != nil {
		return nil, err
	}
	return &IntensityVolume{Grid: g}, nil
}

// Above returns intensity > threshold.
func (v *IntensityVolume) Above(threshold float64) *Mask {
	m := NewMask(v.N, v.Shape)
	for i, x := range v.Data {
		m.Data[i] = x > threshold
	}
	return m
}

// Mask is a boolean batch volume.
type Mask struct {
	Grid[bool]
}

// NewMask allocates an all-false mask.
func NewMask(n int, shape Shape) *Mask {
	return &Mask{Grid: Grid[bool]{N: n, Shape: shape, Data: make([]bool, n*shape.Voxels())}}
}

// NewMaskFrom wraps existing data as a mask.
func NewMaskFrom(n int, shape Shape, data []bool) (*Mask, error) {
	g, err := newGrid(n, shape, data)
	if err != nil {
		return nil, err
	}
	return &Mask{Grid: g}, nil
}

// At returns the mask value of entry i at p.
func (m *Mask) At(i int, p Point) bool {
	return m.Data[i*m.Shape.Voxels()+m.Shape.Index(p)]
}

// Count returns the number of true voxels in entry i.
func (m *Mask) Count(i int) int {
	n := 0
	for _, v := range m.Entry(i) {
		if v {
			n++
		}
	}
	return n
}

// Indices returns the raster offsets of the true voxels of entry i, ascending.
func (m *Mask) Indices(i int) []int {
	var out []int
	for idx, v := range m.Entry(i) {
		if v {
			out = append(out, idx)
		}
	}
	return out
}

// And returns m AND o.
func (m *Mask) And(o *Mask) (*Mask, error) {
	return m.combine(o, func(a, b bool) bool { return a && b })
}

// AndNot returns m AND NOT o.
func (m *Mask) AndNot(o *Mask) (*Mask, error) {
	return m.combine(o, func(a, b bool) bool { return a && !b })
}

// Or returns m OR o.
func (m *Mask) Or(o *Mask) (*Mask, error) {
	return m.combine(o, func(a, b bool) bool { return a || b })
}

func (m *Mask) combine(o *Mask, op func(a, b bool) bool) (*Mask, error) {
	if !SameLayout(m.Grid, o.Grid) {
		return nil, fmt.Errorf("%w: %d x %s vs %d x %s", ErrShapeMismatch, m.N, m.Shape, o.N, o.Shape)
	}
	out := NewMask(m.N, m.Shape)
	for i := range m.Data {
		out.Data[i] = op(m.Data[i], o.Data[i])
	}
	return out, nil
}
