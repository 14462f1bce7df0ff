// Package random provides the explicit, seedable random source that every
// click sampler draws from. There is no package-level generator: callers
// build a Source from a seed and pass it down.
package random

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source is the randomness a sampler may consume.
type Source interface {
	// Intn returns a uniform integer in [0, n). It panics if n <= 0.
	Intn(n int) int

	// Float64 returns a uniform float in [0, 1).
	Float64() float64

	// Shuffle permutes n elements uniformly using swap.
	Shuffle(n int, swap func(i, j int))

	// Coin flips an unbiased coin.
	Coin() bool

	// Stream returns an independent source for the given batch entry. The
	// stream depends only on the parent's seed and index, never on how much
	// of the parent has been consumed, so entries can be processed in any
	// order or concurrently.
	Stream(index int) Source
}

// Rand is a PCG-backed Source.
type Rand struct {
	seed uint64
	rng  *rand.Rand
	coin distuv.Bernoulli
}

// New returns a Source seeded with seed.
func New(seed uint64) *Rand {
	src := rand.NewSource(seed)
	return &Rand{
		seed: seed,
		rng:  rand.New(src),
		coin: distuv.Bernoulli{P: 0.5, Src: src},
	}
}

// Seed returns the seed this source was built from.
func (r *Rand) Seed() uint64 { return r.seed }

func (r *Rand) Intn(n int) int { return r.rng.Intn(n) }

func (r *Rand) Float64() float64 { return r.rng.Float64() }

func (r *Rand) Shuffle(n int, swap func(i, j int)) { r.rng.Shuffle(n, swap) }

func (r *Rand) Coin() bool { return r.coin.Rand() == 1 }

func (r *Rand) Stream(index int) Source {
	return New(mix(r.seed ^ (uint64(index)+1)*0x9e3779b97f4a7c15))
}

// mix is the splitmix64 finalizer; it spreads nearby seeds apart.
func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Point draws a uniform voxel inside a D x H x W volume.
func Point(src Source, depth, height, width int) (z, y, x int) {
	return src.Intn(depth), src.Intn(height), src.Intn(width)
}
