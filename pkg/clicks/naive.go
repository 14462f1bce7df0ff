package clicks

import (
	"clicksim3d/internal/models"
	"clicksim3d/pkg/random"
)

// naiveOutside has no reference at all. It samples from the predicted mask
// joined with an uncertainty mask (currently always empty) and labels the
// click by the prediction at that voxel.
type naiveOutside struct{ base }

func (s *naiveOutside) Sample(in Inputs, src random.Source) (models.ClickSet, error) {
	if err := in.validate(s.method, false, false); err != nil {
		return nil, err
	}
	predicted := in.Predicted.Mask()
	uncertain := models.NewMask(predicted.N, predicted.Shape)
	region, err := predicted.Or(uncertain)
	if err != nil {
		return nil, err
	}

	shape := in.Predicted.Shape
	return s.perEntry(in.Predicted.N, src, func(entry int, src random.Source) (models.Click, bool, error) {
		p, ok := pick(region, entry, src)
		if !ok {
			s.fallback(entry, "empty prediction")
			p = anywhere(shape, src)
		}
		return models.Click{Entry: entry, Point: p, Label: labelOf(predicted.At(entry, p))}, true, nil
	})
}
