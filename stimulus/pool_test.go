package stimulus

import (
	"testing"

	"github.com/numlab/numerosity/types"
)

func TestVariantIDs(t *testing.T) {
	ids, err := VariantIDs(types.CategoryPeople, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 10 {
		t.Fatalf("len = %d, want 10", len(ids))
	}
	for i, id := range ids {
		if id != i {
			t.Errorf("ids[%d] = %d", i, id)
		}
	}
}

func TestVariantIDs_OutOfRange(t *testing.T) {
	tests := []struct {
		name       string
		category   types.Category
		numerosity int
	}{
		{"below range", types.CategoryObjects, 4},
		{"above range", types.CategoryObjects, 9},
		{"unknown category", types.Category("animals"), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := VariantIDs(tt.category, tt.numerosity); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAll(t *testing.T) {
	all := All()
	if len(all) != 80 {
		t.Fatalf("len(All()) = %d, want 80", len(all))
	}
	seen := make(map[types.StimulusRef]bool)
	for _, ref := range all {
		if seen[ref] {
			t.Fatalf("duplicate %v", ref)
		}
		seen[ref] = true
		if !Contains(ref) {
			t.Errorf("Contains(%v) = false", ref)
		}
	}
}

func TestImagePath(t *testing.T) {
	got := ImagePath(types.StimulusRef{Category: types.CategoryObjects, Numerosity: 6, VariantID: 3})
	if want := "num-task-imgs/objects/num-6-3.png"; got != want {
		t.Errorf("ImagePath = %q, want %q", got, want)
	}
}
