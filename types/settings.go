package types

import (
	"errors"
	"fmt"
)

// Sequencing selects the category order of the two halves.
type Sequencing string

const (
	// SequencingRandom draws the order once per session.
	SequencingRandom Sequencing = "random"
	// SequencingPeopleFirst runs people, then objects.
	SequencingPeopleFirst Sequencing = "people"
	// SequencingObjectsFirst runs objects, then people.
	SequencingObjectsFirst Sequencing = "objects"
)

// DefaultBlocksPerHalf is used when duration.content is zero.
const DefaultBlocksPerHalf = 5

// DefaultLanguage is the fallback language tag.
const DefaultLanguage = "en"

// Settings is the operator-facing session configuration in its wire shape:
//
//	{"sequencing":{"content":"random"},"duration":{"content":5},
//	 "configuration":{"skipCalibration":false,"forceDevice":false},
//	 "language":{"content":"en"}}
type Settings struct {
	Sequencing    SequencingSetting `json:"sequencing" yaml:"sequencing" msgpack:"sequencing"`
	Duration      DurationSetting   `json:"duration" yaml:"duration" msgpack:"duration"`
	Configuration Configuration     `json:"configuration" yaml:"configuration" msgpack:"configuration"`
	Language      LanguageSetting   `json:"language" yaml:"language" msgpack:"language"`
}

// SequencingSetting wraps the sequencing choice.
type SequencingSetting struct {
	Content Sequencing `json:"content" yaml:"content" msgpack:"content"`
}

// DurationSetting wraps the number of blocks per half.
type DurationSetting struct {
	Content int `json:"content" yaml:"content" msgpack:"content"`
}

// LanguageSetting wraps the display language tag.
type LanguageSetting struct {
	Content string `json:"content" yaml:"content" msgpack:"content"`
}

// Configuration holds session switches.
type Configuration struct {
	SkipCalibration bool `json:"skipCalibration" yaml:"skipCalibration" msgpack:"skipCalibration"`
	ForceDevice     bool `json:"forceDevice" yaml:"forceDevice" msgpack:"forceDevice"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Sequencing: SequencingSetting{Content: SequencingRandom},
		Duration:   DurationSetting{Content: DefaultBlocksPerHalf},
		Language:   LanguageSetting{Content: DefaultLanguage},
	}
}

// ErrInvalidSettings is wrapped by every settings validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Normalize fills zero values with defaults.
func (s *Settings) Normalize() {
	if s.Sequencing.Content == "" {
		s.Sequencing.Content = SequencingRandom
	}
	if s.Duration.Content == 0 {
		s.Duration.Content = DefaultBlocksPerHalf
	}
	if s.Language.Content == "" {
		s.Language.Content = DefaultLanguage
	}
}

// BlocksPerHalf returns the configured number of blocks per half.
func (s Settings) BlocksPerHalf() int {
	if s.Duration.Content == 0 {
		return DefaultBlocksPerHalf
	}
	return s.Duration.Content
}

// Validate checks the settings shape. Stimulus availability is checked by
// the sequencer, which owns the pool bounds.
func (s Settings) Validate() error {
	switch s.Sequencing.Content {
	case SequencingRandom, SequencingPeopleFirst, SequencingObjectsFirst, "":
	default:
		return fmt.Errorf("%w: unknown sequencing %q", ErrInvalidSettings, s.Sequencing.Content)
	}
	if s.Duration.Content < 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidSettings, s.Duration.Content)
	}
	return nil
}
