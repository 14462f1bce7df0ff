package clicks

import (
	"fmt"

	"clicksim3d/internal/models"
)

// ComputeErrors compares a prediction against a reference mask. The
// prediction is thresholded at models.MaskThreshold; fn marks reference
// foreground the model missed and fp marks predicted foreground outside the
// reference. The two masks are disjoint.
func ComputeErrors(pred *models.ProbabilityVolume, ref *models.Mask) (fn, fp *models.Mask, err error) {
	if pred == nil || ref == nil {
		return nil, nil, fmt.Errorf("%w: error masks need a prediction and a reference", ErrMissingInput)
	}
	if !models.SameLayout(pred.Grid, ref.Grid) {
		return nil, nil, fmt.Errorf("%w: prediction %d x %s, reference %d x %s",
			models.ErrShapeMismatch, pred.N, pred.Shape, ref.N, ref.Shape)
	}

	predicted := pred.Mask()
	if fn, err = ref.AndNot(predicted); err != nil {
		return nil, nil, err
	}
	if fp, err = predicted.AndNot(ref); err != nil {
		return nil, nil, err
	}
	return fn, fp, nil
}
