package clicks

import (
	"clicksim3d/internal/models"
	"clicksim3d/pkg/random"
)

// thresholdOnly works without labels: voxels brighter than the intensity
// threshold stand in for the reference. Only missed bright voxels are
// clicked; false positives are ignored because the proxy is too noisy.
type thresholdOnly struct{ base }

func (s *thresholdOnly) Sample(in Inputs, src random.Source) (models.ClickSet, error) {
	if err := in.validate(s.method, false, true); err != nil {
		return nil, err
	}
	fn, _, err := ComputeErrors(in.Predicted, in.Intensity.Above(*s.opts.IntensityThreshold))
	if err != nil {
		return nil, err
	}

	shape := in.Predicted.Shape
	return s.perEntry(in.Predicted.N, src, func(entry int, src random.Source) (models.Click, bool, error) {
		if p, ok := pick(fn, entry, src); ok {
			return models.Click{Entry: entry, Point: p, Label: models.Positive}, true, nil
		}
		s.fallback(entry, "no voxels above threshold outside the prediction")
		return models.Click{Entry: entry, Point: anywhere(shape, src), Label: models.Negative}, true, nil
	})
}
