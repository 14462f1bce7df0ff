package clicks

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"clicksim3d/internal/models"
	"clicksim3d/pkg/random"
)

// Assembler collects per-entry clicks into batch order. Concurrent calls to
// Set are safe as long as they target distinct entries.
type Assembler struct {
	clicks []models.Click
	set    []bool
}

// NewAssembler prepares an Assembler for a batch of n entries.
func NewAssembler(n int) *Assembler {
	return &Assembler{clicks: make([]models.Click, n), set: make([]bool, n)}
}

// Set records the click for c.Entry.
func (a *Assembler) Set(c models.Click) {
	a.clicks[c.Entry] = c
	a.set[c.Entry] = true
}

// Omitted lists the entries that never received a click, ascending.
func (a *Assembler) Omitted() []int {
	var out []int
	for i, ok := range a.set {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

// ClickSet returns the recorded clicks ascending by entry. Omitted entries
// are skipped, not padded.
func (a *Assembler) ClickSet() models.ClickSet {
	out := make(models.ClickSet, 0, len(a.clicks))
	for i, c := range a.clicks {
		if a.set[i] {
			out = append(out, c)
		}
	}
	return out
}

// base carries what every sampler shares.
type base struct {
	method Method
	opts   Options
}

func (b base) Method() Method { return b.method }

// entryFunc picks the click for one entry. ok=false omits the entry.
type entryFunc func(entry int, src random.Source) (c models.Click, ok bool, err error)

// perEntry runs fn for every entry on up to opts.Workers goroutines. Each
// entry draws from its own stream, so the result does not depend on the
// worker count.
func (b base) perEntry(n int, src random.Source, fn entryFunc) (models.ClickSet, error) {
	start := time.Now()
	asm := NewAssembler(n)

	p := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(b.opts.Workers)
	for entry := 0; entry < n; entry++ {
		entry := entry // per-iteration copy; module targets go 1.21 loop semantics
		p.Go(func() error {
			c, ok, err := fn(entry, src.Stream(entry))
			if err != nil {
				return fmt.Errorf("%s: entry %d: %w", b.method, entry, err)
			}
			if ok {
				asm.Set(c)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return b.finish(asm, start), nil
}

func (b base) finish(asm *Assembler, start time.Time) models.ClickSet {
	clicks := asm.ClickSet()
	for _, c := range clicks {
		b.opts.Metrics.Click(string(b.method), c.Label.String())
	}
	b.opts.Metrics.ObserveDuration(string(b.method), time.Since(start))
	return clicks
}

// fallback notes an entry that got a random click for lack of errors.
func (b base) fallback(entry int, reason string) {
	slog.Debug("Falling back to a random click", "method", b.method, "entry", entry, "reason", reason)
	b.opts.Metrics.Fallback(string(b.method))
}

// omit notes an entry left out of the result.
func (b base) omit(entry int, reason string) {
	slog.Debug("Omitting entry", "method", b.method, "entry", entry, "reason", reason)
	b.opts.Metrics.Omitted(string(b.method))
}

// pick draws a uniform voxel among the true voxels of m's entry.
func pick(m *models.Mask, entry int, src random.Source) (models.Point, bool) {
	idx := m.Indices(entry)
	if len(idx) == 0 {
		return models.Point{}, false
	}
	return m.Shape.PointAt(idx[src.Intn(len(idx))]), true
}

// anywhere draws a uniform voxel of the whole volume.
func anywhere(shape models.Shape, src random.Source) models.Point {
	z, y, x := random.Point(src, shape.Depth, shape.Height, shape.Width)
	return models.Point{Z: z, Y: y, X: x}
}

func labelOf(positive bool) models.Label {
	if positive {
		return models.Positive
	}
	return models.Negative
}
