// Package clicks simulates the corrective clicks an annotator would place on a
// 3D segmentation. Every strategy implements Sampler and turns a batch of
// predictions (plus, depending on the strategy, reference labels or raw
// intensities) into at most one signed click per batch entry.
package clicks

import (
	"errors"
	"fmt"
	"runtime"

	"clicksim3d/internal/metrics"
	"clicksim3d/internal/models"
	"clicksim3d/pkg/components"
	"clicksim3d/pkg/distance"
	"clicksim3d/pkg/random"
)

var (
	// ErrMissingInput is returned when a sampler is called without a volume it needs.
	ErrMissingInput = errors.New("missing input volume")

	// ErrUnknownMethod is returned for an unrecognised sampler name.
	ErrUnknownMethod = errors.New("unknown sampling method")
)

// Method names a sampling strategy.
type Method string

const (
	// ThresholdOnly uses intensity > threshold as a weak reference and
	// samples false negatives only.
	ThresholdOnly Method = "threshold_only"
	// NaiveOutside samples inside the predicted mask with no reference at all.
	NaiveOutside Method = "naive_outside"
	// GroundTruth balances false negatives and false positives with a coin.
	GroundTruth Method = "ground_truth"
	// DistanceTransform samples deep inside the error region with the larger
	// erosion depth.
	DistanceTransform Method = "distance_transform"
	// BatchedUnique picks one error voxel per entry in a single shuffled pass.
	BatchedUnique Method = "batched_unique"
	// LargestComponent samples inside the largest reference component.
	LargestComponent Method = "largest_component"
)

const (
	// DefaultMethod is used when no method is configured.
	DefaultMethod = GroundTruth
	// DefaultIntensityThreshold is the weak-reference cutoff for ThresholdOnly.
	DefaultIntensityThreshold = 170.0
	// DefaultDistanceWorkers is the parallelism of one distance transform.
	DefaultDistanceWorkers = 4
)

// Sampler picks corrective clicks for a batch.
//
// Samplers are stateless between calls; all randomness comes from src. The
// four samplers with a fallback (threshold_only, naive_outside,
// ground_truth, distance_transform) always return one click per entry.
// batched_unique and largest_component leave out entries that have nothing
// to click on, so their result may be shorter than the batch.
type Sampler interface {
	Method() Method
	Sample(in Inputs, src random.Source) (models.ClickSet, error)
}

// Inputs are the volumes a sampler may read. Predicted is always required;
// the others depend on the method (see Requirements).
type Inputs struct {
	Predicted *models.ProbabilityVolume
	Reference *models.LabelVolume
	Intensity *models.IntensityVolume
}

// validate checks presence and layout of the inputs before any sampling.
func (in Inputs) validate(method Method, needReference, needIntensity bool) error {
	if in.Predicted == nil {
		return fmt.Errorf("%s: %w: predicted", method, ErrMissingInput)
	}
	if needReference && in.Reference == nil {
		return fmt.Errorf("%s: %w: reference", method, ErrMissingInput)
	}
	if needIntensity && in.Intensity == nil {
		return fmt.Errorf("%s: %w: intensity", method, ErrMissingInput)
	}
	if in.Reference != nil && !models.SameLayout(in.Predicted.Grid, in.Reference.Grid) {
		return fmt.Errorf("%s: %w: predicted %d x %s, reference %d x %s", method, models.ErrShapeMismatch,
			in.Predicted.N, in.Predicted.Shape, in.Reference.N, in.Reference.Shape)
	}
	if in.Intensity != nil && !models.SameLayout(in.Predicted.Grid, in.Intensity.Grid) {
		return fmt.Errorf("%s: %w: predicted %d x %s, intensity %d x %s", method, models.ErrShapeMismatch,
			in.Predicted.N, in.Predicted.Shape, in.Intensity.N, in.Intensity.Shape)
	}
	return nil
}

// Options tune the samplers. The zero value is usable.
type Options struct {
	// Workers bounds the batch entries processed concurrently (<= 0: NumCPU).
	Workers int
	// IntensityThreshold is the ThresholdOnly cutoff. Nil selects
	// DefaultIntensityThreshold; zero is a valid cutoff.
	IntensityThreshold *float64
	// DistanceEngine computes the transforms for DistanceTransform. Nil
	// selects the exact engine.
	DistanceEngine distance.Engine
	// DistanceWorkers is the parallelism inside one transform (<= 0:
	// DefaultDistanceWorkers).
	DistanceWorkers int
	// Connectivity joins reference voxels into components for
	// LargestComponent. Zero selects full 26-connectivity.
	Connectivity components.Connectivity
	// Metrics receives click, fallback and omission counts. May be nil.
	Metrics *metrics.Recorder
}

// Threshold returns a pointer to v for Options.IntensityThreshold.
func Threshold(v float64) *float64 { return &v }

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.IntensityThreshold == nil {
		o.IntensityThreshold = Threshold(DefaultIntensityThreshold)
	}
	if o.DistanceEngine == nil {
		o.DistanceEngine = distance.Exact{}
	}
	if o.DistanceWorkers <= 0 {
		o.DistanceWorkers = DefaultDistanceWorkers
	}
	if o.Connectivity == 0 {
		o.Connectivity = components.Corners
	}
	return o
}

// Requirement describes what a method reads and whether it can shorten the batch.
type Requirement struct {
	Method    Method
	Reference bool
	Intensity bool
	// MayOmit is set for methods that leave out entries with nothing to click.
	MayOmit bool
}

var requirements = []Requirement{
	{Method: ThresholdOnly, Intensity: true},
	{Method: NaiveOutside},
	{Method: GroundTruth, Reference: true},
	{Method: DistanceTransform, Reference: true},
	{Method: BatchedUnique, Reference: true, MayOmit: true},
	{Method: LargestComponent, Reference: true, MayOmit: true},
}

// Methods lists every sampling method.
func Methods() []Method {
	out := make([]Method, len(requirements))
	for i, r := range requirements {
		out[i] = r.Method
	}
	return out
}

// Requirements lists the inputs each method needs.
func Requirements() []Requirement {
	return append([]Requirement(nil), requirements...)
}

// ParseMethod resolves a method name. The empty string selects DefaultMethod.
func ParseMethod(name string) (Method, error) {
	if name == "" {
		return DefaultMethod, nil
	}
	for _, r := range requirements {
		if string(r.Method) == name {
			return r.Method, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

// New builds the sampler for method.
func New(method Method, opts Options) (Sampler, error) {
	b := base{method: method, opts: opts.withDefaults()}
	if !b.opts.Connectivity.Valid() {
		return nil, fmt.Errorf("%s: unsupported connectivity %d", method, b.opts.Connectivity)
	}

	switch method {
	case ThresholdOnly:
		return &thresholdOnly{b}, nil
	case NaiveOutside:
		return &naiveOutside{b}, nil
	case GroundTruth:
		return &groundTruth{b}, nil
	case DistanceTransform:
		return &distanceTransform{b}, nil
	case BatchedUnique:
		return &batchedUnique{b}, nil
	case LargestComponent:
		return &largestComponent{b}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}
