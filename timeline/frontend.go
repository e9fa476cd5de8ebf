package timeline

import (
	"context"
	"errors"
)

// ErrFrontendClosed is returned when the front-end stops producing events.
var ErrFrontendClosed = errors.New("frontend closed")

// Frontend renders steps and reports participant input.
type Frontend interface {
	// Show replaces the current screen with step.
	Show(step Step) error
	// Events delivers participant input. It is closed when the front-end exits.
	Events() <-chan Event
	// Close releases the front-end.
	Close() error
}

// Interrupter handles a quit request raised during a step.
type Interrupter interface {
	// Interrupt presents the quit survey. It returns resume=true when the
	// participant closes the survey, false when they confirm quitting.
	Interrupt(ctx context.Context) (resume bool, err error)
}

// Next waits for the next event answering stepID. Events addressed to other
// steps are stale and skipped; quit events always apply.
func Next(ctx context.Context, fe Frontend, stepID string) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case ev, ok := <-fe.Events():
			if !ok {
				return Event{}, ErrFrontendClosed
			}
			if ev.Kind == EventQuit || ev.StepID == stepID {
				return ev, nil
			}
		}
	}
}
