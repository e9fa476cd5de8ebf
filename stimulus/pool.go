// Package stimulus describes the fixed stimulus image pool.
//
// The pool holds every (category, numerosity, variant) triple once:
// 2 categories × 4 numerosities × 10 variants.
package stimulus

import (
	"fmt"

	"github.com/numlab/numerosity/types"
)

// AssetRoot is the relative directory holding the stimulus images.
const AssetRoot = "num-task-imgs"

// VariantIDs returns the variant ids available for (category, numerosity).
func VariantIDs(category types.Category, numerosity int) ([]int, error) {
	if err := check(category, numerosity); err != nil {
		return nil, err
	}
	ids := make([]int, types.VariantsPerNumerosity)
	for i := range ids {
		ids[i] = i
	}
	return ids, nil
}

// All returns every stimulus of the pool, grouped by category then numerosity.
func All() []types.StimulusRef {
	out := make([]types.StimulusRef, 0, len(types.Categories)*types.TrialsPerBlock*types.VariantsPerNumerosity)
	for _, c := range types.Categories {
		for _, n := range types.Numerosities() {
			for id := range types.VariantsPerNumerosity {
				out = append(out, types.StimulusRef{Category: c, Numerosity: n, VariantID: id})
			}
		}
	}
	return out
}

// ImagePath returns the asset path of a stimulus, relative to the asset base.
func ImagePath(ref types.StimulusRef) string {
	return fmt.Sprintf("%s/%s/num-%d-%d.png", AssetRoot, ref.Category, ref.Numerosity, ref.VariantID)
}

// Contains reports whether ref belongs to the pool.
func Contains(ref types.StimulusRef) bool {
	if check(ref.Category, ref.Numerosity) != nil {
		return false
	}
	return ref.VariantID >= 0 && ref.VariantID < types.VariantsPerNumerosity
}

func check(category types.Category, numerosity int) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", category)
	}
	if numerosity < types.MinNumerosity || numerosity > types.MaxNumerosity {
		return fmt.Errorf("numerosity %d outside [%d, %d]", numerosity, types.MinNumerosity, types.MaxNumerosity)
	}
	return nil
}
