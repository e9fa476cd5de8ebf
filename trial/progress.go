package trial

import (
	"math"
	"sync"

	"github.com/numlab/numerosity/types"
)

// Progress tracks the session completion fraction shown to the participant.
type Progress struct {
	mu    sync.Mutex
	value float64
	step  float64
}

// NewProgress returns a tracker that reaches 1 after both halves of
// nbBlocksPerHalf blocks.
func NewProgress(nbBlocksPerHalf int) *Progress {
	total := 2 * types.TrialsPerBlock * nbBlocksPerHalf
	p := &Progress{}
	if total > 0 {
		p.step = 1 / float64(total)
	}
	return p
}

// Advance adds one trial and returns the new value, rounded to six decimals.
func (p *Progress) Advance() float64 {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = math.Min(1, math.Round((p.value+p.step)*1e6)/1e6)
	return p.value
}

// Value returns the current fraction.
func (p *Progress) Value() float64 {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}
