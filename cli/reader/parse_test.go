package reader

import (
	"testing"

	"github.com/numlab/numerosity/types"
)

func TestSummarizeTrials(t *testing.T) {
	noEstimate := trial(0, types.CategoryPeople, 6, 0)
	noEstimate.Estimate = nil
	quiz := types.Record{Type: types.RecordTypeQuiz, Answer: "2"}

	cells := SummarizeTrials([]types.Record{
		trial(0, types.CategoryPeople, 6, 5),
		trial(0, types.CategoryPeople, 6, 6),
		trial(0, types.CategoryPeople, 6, 8),
		noEstimate,
		quiz,
	})
	if len(cells) != 1 {
		t.Fatalf("cells = %+v", cells)
	}
	c := cells[0]
	if c.Count != 3 || c.MeanEstimate != 6.33 || c.MeanAbsError != 1 {
		t.Errorf("cell = %+v", c)
	}
}

func TestSummarizeTrials_Ordering(t *testing.T) {
	cells := SummarizeTrials([]types.Record{
		trial(1, types.CategoryPeople, 8, 8),
		trial(0, types.CategoryObjects, 7, 7),
		trial(1, types.CategoryPeople, 5, 5),
		trial(0, types.CategoryObjects, 5, 5),
	})
	var got []string
	for _, c := range cells {
		got = append(got, c.Category+string(rune('0'+c.Numerosity)))
	}
	want := []string{"objects5", "objects7", "people5", "people8"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestHalfOrder(t *testing.T) {
	tests := []struct {
		name    string
		records []types.Record
		want    []string
	}{
		{"empty", nil, nil},
		{"one half", []types.Record{trial(0, types.CategoryObjects, 5, 5)}, []string{"objects"}},
		{
			"two halves",
			[]types.Record{
				trial(0, types.CategoryObjects, 5, 5),
				{Type: types.RecordTypeQuiz},
				trial(0, types.CategoryObjects, 6, 6),
				trial(1, types.CategoryPeople, 5, 5),
			},
			[]string{"objects", "people"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := halfOrder(tt.records)
			if len(got) != len(tt.want) {
				t.Fatalf("halfOrder = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("halfOrder = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
