package reader

import (
	"math"
	"sort"

	"github.com/numlab/numerosity/types"
)

type cellKey struct {
	category   types.Category
	numerosity int
}

type cellAcc struct {
	count  int
	sum    float64
	absErr float64
}

// estimateAggregator accumulates trial estimates per category and
// numerosity. Trials without an estimate are skipped.
type estimateAggregator struct {
	cells  map[cellKey]*cellAcc
	trials int
}

func newEstimateAggregator() *estimateAggregator {
	return &estimateAggregator{cells: map[cellKey]*cellAcc{}}
}

func (a *estimateAggregator) add(records []types.Record) {
	for _, rec := range records {
		if rec.Type != types.RecordTypeTrial || rec.Estimate == nil {
			continue
		}
		k := cellKey{category: rec.Category, numerosity: rec.Numerosity}
		acc, ok := a.cells[k]
		if !ok {
			acc = &cellAcc{}
			a.cells[k] = acc
		}
		est := float64(*rec.Estimate)
		acc.count++
		acc.sum += est
		acc.absErr += math.Abs(est - float64(rec.Numerosity))
		a.trials++
	}
}

// result returns cells ordered by category, then numerosity.
func (a *estimateAggregator) result() []EstimateCell {
	out := make([]EstimateCell, 0, len(a.cells))
	for k, acc := range a.cells {
		out = append(out, EstimateCell{
			Category:     string(k.category),
			Numerosity:   k.numerosity,
			Count:        acc.count,
			MeanEstimate: round2(acc.sum / float64(acc.count)),
			MeanAbsError: round2(acc.absErr / float64(acc.count)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Numerosity < out[j].Numerosity
	})
	return out
}

// SummarizeTrials aggregates the trial records of one session.
func SummarizeTrials(records []types.Record) []EstimateCell {
	a := newEstimateAggregator()
	a.add(records)
	return a.result()
}

// halfOrder returns the category of each half in the order they ran.
func halfOrder(records []types.Record) []string {
	var order []string
	last := -1
	for _, rec := range records {
		if rec.Type != types.RecordTypeTrial || rec.Half == nil || *rec.Half == last {
			continue
		}
		last = *rec.Half
		order = append(order, string(rec.Category))
	}
	return order
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
