// Package sequencer builds the randomized trial order of a session half.
//
// A half of nbBlocksPerHalf blocks holds 4 × nbBlocksPerHalf trials. Each
// block contains exactly one trial per numerosity in shuffled order, and
// no variant image repeats within a half.
package sequencer

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/numlab/numerosity/stimulus"
	"github.com/numlab/numerosity/types"
)

// MaxJitterMs bounds the pre-blank jitter in both directions.
const MaxJitterMs = 150.0

// ErrInvalidBlockCount is returned when nbBlocksPerHalf is below one.
var ErrInvalidBlockCount = errors.New("blocks per half must be at least 1")

// InsufficientStimuliError reports that a half needs more distinct variants
// than the pool holds for one (category, numerosity).
type InsufficientStimuliError struct {
	Requested int
	Available int
}

func (e *InsufficientStimuliError) Error() string {
	return fmt.Sprintf("insufficient stimuli: %d blocks per half requested, %d variants available",
		e.Requested, e.Available)
}

// Sequencer draws trial orders from a seeded source.
// It is not safe for concurrent use; the flow controller owns it.
type Sequencer struct {
	rng    *rand.Rand
	jitter bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithoutJitter disables pre-blank jitter (every trial gets 0).
func WithoutJitter() Option {
	return func(s *Sequencer) { s.jitter = false }
}

// New creates a sequencer seeded with seed.
func New(seed uint64, opts ...Option) *Sequencer {
	s := &Sequencer{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		jitter: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSeed returns a seed read from the system's secure random source.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Check validates nbBlocksPerHalf against the pool without drawing.
func Check(nbBlocksPerHalf int) error {
	if nbBlocksPerHalf < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidBlockCount, nbBlocksPerHalf)
	}
	if nbBlocksPerHalf > types.VariantsPerNumerosity {
		return &InsufficientStimuliError{Requested: nbBlocksPerHalf, Available: types.VariantsPerNumerosity}
	}
	return nil
}

// GenerateHalf returns 4 × nbBlocksPerHalf trials for category.
//
// For every numerosity the variant ids are shuffled and the first
// nbBlocksPerHalf kept. Block i takes the i-th kept id of each numerosity,
// and the four trials of the block are shuffled. Each trial gets its own
// jitter in [-150, 150] ms.
func (s *Sequencer) GenerateHalf(category types.Category, nbBlocksPerHalf int) ([]types.TrialSpec, error) {
	if err := Check(nbBlocksPerHalf); err != nil {
		return nil, err
	}

	numerosities := types.Numerosities()
	draws := make(map[int][]int, len(numerosities))
	for _, n := range numerosities {
		ids, err := stimulus.VariantIDs(category, n)
		if err != nil {
			return nil, err
		}
		s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		draws[n] = ids[:nbBlocksPerHalf]
	}

	trials := make([]types.TrialSpec, 0, nbBlocksPerHalf*len(numerosities))
	for b := range nbBlocksPerHalf {
		block := make([]types.TrialSpec, 0, len(numerosities))
		for _, n := range numerosities {
			block = append(block, types.TrialSpec{
				Stimulus: types.StimulusRef{
					Category:   category,
					Numerosity: n,
					VariantID:  draws[n][b],
				},
			})
		}
		s.rng.Shuffle(len(block), func(i, j int) { block[i], block[j] = block[j], block[i] })
		for i := range block {
			block[i].BlackscreenJitterMs = s.drawJitter()
		}
		trials = append(trials, block...)
	}
	return trials, nil
}

// HalfOrder resolves the category order of the two halves.
// It draws from the sequencer only for random sequencing.
func (s *Sequencer) HalfOrder(seq types.Sequencing) [2]types.Category {
	switch seq {
	case types.SequencingPeopleFirst:
		return [2]types.Category{types.CategoryPeople, types.CategoryObjects}
	case types.SequencingObjectsFirst:
		return [2]types.Category{types.CategoryObjects, types.CategoryPeople}
	default:
		if s.rng.IntN(2) == 0 {
			return [2]types.Category{types.CategoryPeople, types.CategoryObjects}
		}
		return [2]types.Category{types.CategoryObjects, types.CategoryPeople}
	}
}

func (s *Sequencer) drawJitter() float64 {
	if !s.jitter {
		return 0
	}
	return (s.rng.Float64() - 0.5) * 2 * MaxJitterMs
}
