package clicks

import (
	"clicksim3d/internal/models"
	"clicksim3d/pkg/random"
)

// groundTruth is the default oracle. When both error kinds are present a
// fair coin decides between a positive click on a false negative and a
// negative click on a false positive.
type groundTruth struct{ base }

func (s *groundTruth) Sample(in Inputs, src random.Source) (models.ClickSet, error) {
	if err := in.validate(s.method, true, false); err != nil {
		return nil, err
	}
	fn, fp, err := ComputeErrors(in.Predicted, in.Reference.Foreground())
	if err != nil {
		return nil, err
	}

	shape := in.Predicted.Shape
	return s.perEntry(in.Predicted.N, src, func(entry int, src random.Source) (models.Click, bool, error) {
		hasFN, hasFP := fn.Count(entry) > 0, fp.Count(entry) > 0
		switch {
		case hasFN && hasFP:
			if src.Coin() {
				return s.click(fn, entry, src, models.Positive), true, nil
			}
			return s.click(fp, entry, src, models.Negative), true, nil
		case hasFN:
			return s.click(fn, entry, src, models.Positive), true, nil
		case hasFP:
			return s.click(fp, entry, src, models.Negative), true, nil
		}
		s.fallback(entry, "prediction matches reference")
		return models.Click{Entry: entry, Point: anywhere(shape, src), Label: models.Negative}, true, nil
	})
}

func (s *groundTruth) click(m *models.Mask, entry int, src random.Source, label models.Label) models.Click {
	p, _ := pick(m, entry, src)
	return models.Click{Entry: entry, Point: p, Label: label}
}
