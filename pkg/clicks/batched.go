package clicks

import (
	"time"

	"clicksim3d/internal/models"
	"clicksim3d/pkg/random"
)

// batchedUnique handles the whole batch in one pass: every error voxel of
// every entry is gathered, the list is shuffled, and the first voxel seen
// for each entry is kept. That is a uniform draw per entry without a
// per-entry loop. Entries without any error voxel are left out.
type batchedUnique struct{ base }

// errorVoxel is one error voxel of the batch.
type errorVoxel struct {
	entry int
	idx   int
}

func (s *batchedUnique) Sample(in Inputs, src random.Source) (models.ClickSet, error) {
	if err := in.validate(s.method, true, false); err != nil {
		return nil, err
	}
	start := time.Now()
	fn, fp, err := ComputeErrors(in.Predicted, in.Reference.Foreground())
	if err != nil {
		return nil, err
	}
	errs, err := fn.Or(fp)
	if err != nil {
		return nil, err
	}

	size := errs.Shape.Voxels()
	var voxels []errorVoxel
	for i, v := range errs.Data {
		if v {
			voxels = append(voxels, errorVoxel{entry: i / size, idx: i % size})
		}
	}
	src.Shuffle(len(voxels), func(i, j int) { voxels[i], voxels[j] = voxels[j], voxels[i] })

	asm := NewAssembler(errs.N)
	seen := make([]bool, errs.N)
	for _, v := range voxels {
		if seen[v.entry] {
			continue
		}
		seen[v.entry] = true
		asm.Set(models.Click{
			Entry: v.entry,
			Point: errs.Shape.PointAt(v.idx),
			Label: labelOf(fn.Entry(v.entry)[v.idx]),
		})
	}
	for _, entry := range asm.Omitted() {
		s.omit(entry, "no error voxels")
	}
	return s.finish(asm, start), nil
}
