// Package trial runs the five timed phases of a single trial.
//
//	pre-blank   1500ms + jitter   trigger "0"
//	fixation     500ms            trigger "1"
//	stimulus     250ms            trigger "2"
//	post-blank  1000ms            trigger "3"
//	estimate    until valid input trigger "4"
//
// Each trigger is fired when its step is shown, before the phase timer is
// armed. Firing never blocks, so phase timing is independent of the
// trigger device.
package trial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/numlab/numerosity/i18n"
	"github.com/numlab/numerosity/log"
	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/stimulus"
	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/trigger"
	"github.com/numlab/numerosity/types"
)

// BaseImageWidthPx is the stimulus width at scale factor 1.
const BaseImageWidthPx = 585.82677165

// ErrAborted is returned when the participant confirms quitting mid-trial.
var ErrAborted = errors.New("session aborted by participant")

// Timing holds the fixed phase durations.
type Timing struct {
	PreBlank  time.Duration
	Fixation  time.Duration
	Stimulus  time.Duration
	PostBlank time.Duration
}

// DefaultTiming returns the experiment's phase durations.
func DefaultTiming() Timing {
	return Timing{
		PreBlank:  1500 * time.Millisecond,
		Fixation:  500 * time.Millisecond,
		Stimulus:  250 * time.Millisecond,
		PostBlank: 1000 * time.Millisecond,
	}
}

// Firer sends a trigger without blocking.
type Firer interface {
	Fire(code trigger.Code)
}

// Recorder appends a record to the ResultLog.
type Recorder interface {
	Append(ctx context.Context, rec *types.Record) types.Record
}

// Config wires a Machine. Frontend, Triggers, Interrupter and Recorder are required.
type Config struct {
	Clock       clockwork.Clock
	Timing      Timing
	Frontend    timeline.Frontend
	Triggers    Firer
	Interrupter timeline.Interrupter
	Recorder    Recorder
	Progress    *Progress
	Texts       *i18n.Translator
	Metrics     *metrics.Collector
	Logger      *log.Logger
}

// Machine runs trials one at a time.
type Machine struct {
	cfg Config

	mu    sync.Mutex
	scale float64
}

// NewMachine creates a machine, filling optional dependencies with defaults.
func NewMachine(cfg Config) *Machine {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	if cfg.Texts == nil {
		cfg.Texts = i18n.MustEnglish()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Machine{cfg: cfg, scale: 1}
}

// SetImageScale sets the calibrated stimulus scale factor.
func (m *Machine) SetImageScale(scale float64) {
	if scale <= 0 {
		return
	}
	m.mu.Lock()
	m.scale = scale
	m.mu.Unlock()
}

// ImageSize returns the calibrated stimulus size in px (16:9).
func (m *Machine) ImageSize() (width, height float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	width = m.scale * BaseImageWidthPx
	return width, width * 9 / 16
}

// Run presents one trial and returns its record once a valid estimate is
// submitted. It returns ErrAborted if the participant quits.
func (m *Machine) Run(ctx context.Context, spec types.TrialSpec, half, index int) (types.Record, error) {
	start := m.cfg.Clock.Now()
	id := func(phase string) string { return fmt.Sprintf("h%d-t%02d-%s", half, index, phase) }
	progress := m.cfg.Progress.Value()

	preBlank := m.cfg.Timing.PreBlank + time.Duration(spec.BlackscreenJitterMs*float64(time.Millisecond))
	if preBlank < 0 {
		preBlank = 0
	}
	width, height := m.ImageSize()
	ref := spec.Stimulus

	phases := []struct {
		step     timeline.Step
		duration time.Duration
		code     trigger.Code
	}{
		{timeline.Step{ID: id("blank"), Kind: timeline.KindBlank, Progress: progress}, preBlank, trigger.PreBlank},
		{timeline.Step{ID: id("fixation"), Kind: timeline.KindFixation, Text: "+", Progress: progress}, m.cfg.Timing.Fixation, trigger.Fixation},
		{timeline.Step{
			ID:          id("stimulus"),
			Kind:        timeline.KindStimulus,
			Stimulus:    &ref,
			ImagePath:   stimulus.ImagePath(ref),
			ImageWidth:  width,
			ImageHeight: height,
			Progress:    progress,
		}, m.cfg.Timing.Stimulus, trigger.Stimulus},
		{timeline.Step{ID: id("post-blank"), Kind: timeline.KindBlank, Progress: progress}, m.cfg.Timing.PostBlank, trigger.PostBlank},
	}
	for _, p := range phases {
		p.step.Duration = p.duration
		if err := m.timed(ctx, p.step, p.duration, p.code); err != nil {
			return types.Record{}, err
		}
	}

	estimate, err := m.estimate(ctx, id("estimate"), ref.Category, progress)
	if err != nil {
		return types.Record{}, err
	}

	stored := m.cfg.Recorder.Append(ctx, types.NewTrialRecord(spec, half, index, estimate, start.UTC()))
	m.cfg.Progress.Advance()
	m.cfg.Metrics.IncTrialCompleted()
	m.cfg.Logger.Debug("trial completed", map[string]any{
		"half":       half,
		"index":      index,
		"numerosity": ref.Numerosity,
		"variant_id": ref.VariantID,
		"estimate":   estimate,
	})
	return stored, nil
}

// timed shows step, fires code and waits d. A quit request pauses the
// timer; on resume the step is shown again without a trigger and the
// remaining time is waited.
func (m *Machine) timed(ctx context.Context, step timeline.Step, d time.Duration, code trigger.Code) error {
	if err := m.cfg.Frontend.Show(step); err != nil {
		return err
	}
	m.cfg.Triggers.Fire(code)

	remaining := d
	for {
		began := m.cfg.Clock.Now()
		timer := m.cfg.Clock.NewTimer(remaining)
		quit, err := m.wait(ctx, timer)
		if err != nil {
			return err
		}
		if !quit {
			return nil
		}
		remaining -= m.cfg.Clock.Since(began)
		if remaining < 0 {
			remaining = 0
		}
		m.cfg.Logger.Info("phase paused", map[string]any{
			"step":         step.ID,
			"remaining_ms": remaining.Milliseconds(),
		})
		if err := m.interrupt(ctx); err != nil {
			return err
		}
		if err := m.cfg.Frontend.Show(step); err != nil {
			return err
		}
	}
}

// wait blocks until timer fires or a quit event arrives. Other events
// are ignored during timed phases.
func (m *Machine) wait(ctx context.Context, timer clockwork.Timer) (quit bool, err error) {
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.Chan():
			return false, nil
		case ev, ok := <-m.cfg.Frontend.Events():
			if !ok {
				timer.Stop()
				return false, timeline.ErrFrontendClosed
			}
			if ev.Kind == timeline.EventQuit {
				timer.Stop()
				return true, nil
			}
		}
	}
}

func (m *Machine) estimate(ctx context.Context, id string, category types.Category, progress float64) (int, error) {
	zero := 0
	step := timeline.Step{
		ID:   id,
		Kind: timeline.KindEstimate,
		Text: m.cfg.Texts.T("estimate.prompt", m.cfg.Texts.T("category."+string(category))),
		Input: &timeline.InputSpec{
			Required: true,
			Min:      &zero,
			Numeric:  true,
		},
		Progress: progress,
	}
	if err := m.cfg.Frontend.Show(step); err != nil {
		return 0, err
	}
	m.cfg.Triggers.Fire(trigger.Response)

	for {
		ev, err := timeline.Next(ctx, m.cfg.Frontend, id)
		if err != nil {
			return 0, err
		}
		switch ev.Kind {
		case timeline.EventQuit:
			if err := m.interrupt(ctx); err != nil {
				return 0, err
			}
		case timeline.EventSubmit:
			n, err := ParseEstimate(ev.Value)
			if err == nil {
				return n, nil
			}
			m.cfg.Metrics.IncInvalidEstimate()
			step.Notice = m.cfg.Texts.T("estimate.invalid")
		default:
			continue
		}
		if err := m.cfg.Frontend.Show(step); err != nil {
			return 0, err
		}
	}
}

func (m *Machine) interrupt(ctx context.Context) error {
	resume, err := m.cfg.Interrupter.Interrupt(ctx)
	if err != nil {
		return err
	}
	if !resume {
		return ErrAborted
	}
	return nil
}
