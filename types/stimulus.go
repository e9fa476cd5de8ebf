// Package types defines core domain types for the numerosity session runtime.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// Category is a stimulus category. Each half of a session uses one category.
type Category string

const (
	// CategoryPeople shows images of people.
	CategoryPeople Category = "people"
	// CategoryObjects shows images of objects.
	CategoryObjects Category = "objects"
)

// Categories lists every category in canonical order.
var Categories = []Category{CategoryPeople, CategoryObjects}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryPeople || c == CategoryObjects
}

// Stimulus set bounds.
const (
	// MinNumerosity is the smallest item count shown in a stimulus.
	MinNumerosity = 5
	// MaxNumerosity is the largest item count shown in a stimulus.
	MaxNumerosity = 8
	// VariantsPerNumerosity is the number of distinct images per (category, numerosity).
	VariantsPerNumerosity = 10
	// TrialsPerBlock is one trial per numerosity.
	TrialsPerBlock = MaxNumerosity - MinNumerosity + 1
)

// Numerosities returns the numerosity range in ascending order.
func Numerosities() []int {
	out := make([]int, 0, TrialsPerBlock)
	for n := MinNumerosity; n <= MaxNumerosity; n++ {
		out = append(out, n)
	}
	return out
}

// StimulusRef identifies one stimulus image.
type StimulusRef struct {
	Category   Category `json:"category" yaml:"category" msgpack:"category"`
	Numerosity int      `json:"numerosity" yaml:"numerosity" msgpack:"numerosity"`
	VariantID  int      `json:"variant_id" yaml:"variant_id" msgpack:"variant_id"`
}

// String renders the ref as category/num-n-id.
func (r StimulusRef) String() string {
	return fmt.Sprintf("%s/num-%d-%d", r.Category, r.Numerosity, r.VariantID)
}

// TrialSpec is a fully resolved trial ready for presentation.
type TrialSpec struct {
	Stimulus StimulusRef `json:"stimulus" yaml:"stimulus" msgpack:"stimulus"`
	// BlackscreenJitterMs is added to the pre-blank phase, in [-150, 150].
	BlackscreenJitterMs float64 `json:"blackscreen_jitter_ms" yaml:"blackscreen_jitter_ms" msgpack:"blackscreen_jitter_ms"`
}
