package timeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Responder returns the events a scripted participant emits after step is
// shown. Events with an empty StepID are addressed to step.
type Responder func(step Step) []Event

// ShownStep is a step as recorded by ScriptedFrontend.
type ShownStep struct {
	Step Step
	At   time.Time
}

// ScriptedFrontend is an in-memory Frontend driven by a Responder.
// It is exported for tests across packages.
type ScriptedFrontend struct {
	respond Responder
	clock   clockwork.Clock
	events  chan Event

	mu      sync.Mutex
	shown   []ShownStep
	closed  bool
	changed chan struct{}
}

// NewScriptedFrontend creates a scripted front-end. A nil clock records
// wall-clock times.
func NewScriptedFrontend(respond Responder, clock clockwork.Clock) *ScriptedFrontend {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ScriptedFrontend{
		respond: respond,
		clock:   clock,
		events:  make(chan Event, 1024),
		changed: make(chan struct{}),
	}
}

// Show records step and emits the responder's events.
func (f *ScriptedFrontend) Show(step Step) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFrontendClosed
	}
	f.shown = append(f.shown, ShownStep{Step: step, At: f.clock.Now()})
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()

	if f.respond == nil {
		return nil
	}
	for _, ev := range f.respond(step) {
		if ev.StepID == "" {
			ev.StepID = step.ID
		}
		if err := f.Emit(ev); err != nil {
			return err
		}
	}
	return nil
}

// Emit injects an event as if the participant produced it.
func (f *ScriptedFrontend) Emit(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFrontendClosed
	}
	select {
	case f.events <- ev:
		return nil
	default:
		return errors.New("scripted frontend: event buffer full")
	}
}

// Events returns the event channel.
func (f *ScriptedFrontend) Events() <-chan Event {
	return f.events
}

// Close closes the event channel.
func (f *ScriptedFrontend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

// Shown returns every step shown so far.
func (f *ScriptedFrontend) Shown() []ShownStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ShownStep(nil), f.shown...)
}

// Kinds returns the kinds of the shown steps in order.
func (f *ScriptedFrontend) Kinds() []StepKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StepKind, len(f.shown))
	for i, s := range f.shown {
		out[i] = s.Step.Kind
	}
	return out
}

// WaitFor blocks until a shown step satisfies match, and returns it.
func (f *ScriptedFrontend) WaitFor(ctx context.Context, match func(Step) bool) (ShownStep, error) {
	seen := 0
	for {
		f.mu.Lock()
		for ; seen < len(f.shown); seen++ {
			if match(f.shown[seen].Step) {
				s := f.shown[seen]
				f.mu.Unlock()
				return s, nil
			}
		}
		changed := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return ShownStep{}, ctx.Err()
		case <-changed:
		}
	}
}
