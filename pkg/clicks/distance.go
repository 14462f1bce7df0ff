package clicks

import (
	"math"

	"clicksim3d/internal/models"
	"clicksim3d/pkg/distance"
	"clicksim3d/pkg/random"
)

// distanceTransform follows the RITM click simulator: the error region
// (false negatives or false positives) whose distance transform reaches
// deeper wins, and the click lands in its erosion zone, the voxels deeper
// than half that maximum.
//
// The procedure is defined for one volume. Batches run it per entry.
type distanceTransform struct{ base }

func (s *distanceTransform) Sample(in Inputs, src random.Source) (models.ClickSet, error) {
	if err := in.validate(s.method, true, false); err != nil {
		return nil, err
	}
	fn, fp, err := ComputeErrors(in.Predicted, in.Reference.Foreground())
	if err != nil {
		return nil, err
	}

	shape := in.Predicted.Shape
	return s.perEntry(in.Predicted.N, src, func(entry int, src random.Source) (models.Click, bool, error) {
		fnField, err := s.field(fn.Entry(entry), shape)
		if err != nil {
			return models.Click{}, false, err
		}
		fpField, err := s.field(fp.Entry(entry), shape)
		if err != nil {
			return models.Click{}, false, err
		}

		fnMax, fpMax := distance.Max(fnField), distance.Max(fpField)
		if fnMax == 0 && fpMax == 0 {
			s.fallback(entry, "prediction matches reference")
			return models.Click{Entry: entry, Point: anywhere(shape, src), Label: models.Negative}, true, nil
		}

		target := fpField
		if fnMax > fpMax {
			target = fnField
		}
		zone := erosionZone(target, math.Max(fnMax, fpMax)/2)
		idx := zone[src.Intn(len(zone))]
		return models.Click{
			Entry: entry,
			Point: shape.PointAt(idx),
			Label: labelOf(fn.Entry(entry)[idx]),
		}, true, nil
	})
}

// field pads mask with one background voxel per face, transforms it with
// the outside treated as background, and strips the padding again.
func (s *distanceTransform) field(mask []bool, shape models.Shape) ([]float64, error) {
	padded, pshape := distance.Pad(mask, shape, 1, false)
	values, err := s.opts.DistanceEngine.Transform(padded, pshape, true, s.opts.DistanceWorkers)
	if err != nil {
		return nil, err
	}
	field, _ := distance.Crop(values, pshape, 1)
	return field, nil
}

// erosionZone returns the raster offsets whose distance exceeds cut.
func erosionZone(field []float64, cut float64) []int {
	var zone []int
	for idx, d := range field {
		if d > cut {
			zone = append(zone, idx)
		}
	}
	return zone
}
