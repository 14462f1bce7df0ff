package clicks

import (
	"clicksim3d/internal/models"
	"clicksim3d/pkg/components"
	"clicksim3d/pkg/random"
)

// largestComponent ignores the prediction and always clicks positive inside
// the largest connected component of the reference foreground. Entries
// whose reference is empty are left out.
type largestComponent struct{ base }

func (s *largestComponent) Sample(in Inputs, src random.Source) (models.ClickSet, error) {
	if err := in.validate(s.method, true, false); err != nil {
		return nil, err
	}
	fg := in.Reference.Foreground()

	return s.perEntry(in.Predicted.N, src, func(entry int, src random.Source) (models.Click, bool, error) {
		labeling, err := components.Label(fg.Entry(entry), fg.Shape, s.opts.Connectivity)
		if err != nil {
			return models.Click{}, false, err
		}
		region, ok := labeling.Largest()
		if !ok {
			s.omit(entry, "empty reference")
			return models.Click{}, false, nil
		}
		idx := region.Voxels[src.Intn(len(region.Voxels))]
		return models.Click{Entry: entry, Point: fg.Shape.PointAt(idx), Label: models.Positive}, true, nil
	})
}
