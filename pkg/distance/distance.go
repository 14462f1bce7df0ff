// Package distance computes Euclidean distance transforms of boolean volumes:
// for each foreground voxel, the distance to the nearest background voxel.
package distance

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"clicksim3d/internal/models"
)

var (
	// ErrShapeMismatch is returned when the mask length does not match the shape.
	ErrShapeMismatch = errors.New("distance: mask does not match shape")

	// ErrUnknownEngine is returned by New for an unrecognised engine name.
	ErrUnknownEngine = errors.New("distance: unknown engine")
)

// Engine names accepted by New.
const (
	EngineExact  = "exact"
	EngineKDTree = "kdtree"
)

// Engine computes a Euclidean distance transform.
//
// Background voxels get 0. With blackBorder set, everything outside the
// volume counts as background; otherwise a voxel with no reachable
// background gets +Inf. workers bounds the goroutines used for one call
// (<= 0 means runtime.NumCPU()).
type Engine interface {
	Transform(mask []bool, shape models.Shape, blackBorder bool, workers int) ([]float64, error)
}

// New returns the engine registered under name.
func New(name string) (Engine, error) {
	switch name {
	case "", EngineExact:
		return Exact{}, nil
	case EngineKDTree:
		return KDTree{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// Engines lists the registered engine names.
func Engines() []string {
	return []string{EngineExact, EngineKDTree}
}

// Pad returns a copy of data grown by n voxels of fill on every face.
func Pad[T any](data []T, shape models.Shape, n int, fill T) ([]T, models.Shape) {
	padded := shape.Pad(n)
	out := make([]T, padded.Voxels())
	for i := range out {
		out[i] = fill
	}
	for z := 0; z < shape.Depth; z++ {
		for y := 0; y < shape.Height; y++ {
			src := shape.Index(models.Point{Z: z, Y: y})
			dst := padded.Index(models.Point{Z: z + n, Y: y + n, X: n})
			copy(out[dst:dst+shape.Width], data[src:src+shape.Width])
		}
	}
	return out, padded
}

// Crop strips n voxels from every face of a padded volume.
func Crop[T any](data []T, padded models.Shape, n int) ([]T, models.Shape) {
	shape := models.Shape{Depth: padded.Depth - 2*n, Height: padded.Height - 2*n, Width: padded.Width - 2*n}
	out := make([]T, shape.Voxels())
	for z := 0; z < shape.Depth; z++ {
		for y := 0; y < shape.Height; y++ {
			src := padded.Index(models.Point{Z: z + n, Y: y + n, X: n})
			dst := shape.Index(models.Point{Z: z, Y: y})
			copy(out[dst:dst+shape.Width], data[src:src+shape.Width])
		}
	}
	return out, shape
}

// Max returns the largest finite value in field, or 0 for an empty field.
func Max(field []float64) float64 {
	best := 0.0
	for _, v := range field {
		if v > best && !math.IsInf(v, 1) {
			best = v
		}
	}
	return best
}

func checkShape(mask []bool, shape models.Shape) error {
	if shape.Depth <= 0 || shape.Height <= 0 || shape.Width <= 0 || len(mask) != shape.Voxels() {
		return fmt.Errorf("%w: %d voxels for %s", ErrShapeMismatch, len(mask), shape)
	}
	return nil
}

func workerCount(workers int) int {
	if workers <= 0 {
		return runtime.NumCPU()
	}
	return workers
}

// parallelFor runs fn over [0, n) split into contiguous chunks, one per worker.
func parallelFor(n, workers int, fn func(start, end int)) {
	workers = workerCount(workers)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
