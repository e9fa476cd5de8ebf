package tui

import (
	"errors"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/numlab/numerosity/timeline"
)

// Frontend runs the participant screen as a Bubble Tea program and
// implements timeline.Frontend.
type Frontend struct {
	prog   *tea.Program
	events chan timeline.Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

// FrontendOption configures a Frontend.
type FrontendOption func(*frontendOptions)

type frontendOptions struct {
	in        io.Reader
	out       io.Writer
	altScreen bool
}

// WithIO replaces the terminal (tests, remote sessions).
func WithIO(in io.Reader, out io.Writer) FrontendOption {
	return func(o *frontendOptions) {
		o.in, o.out = in, out
	}
}

// WithoutAltScreen keeps the program in the main screen buffer.
func WithoutAltScreen() FrontendOption {
	return func(o *frontendOptions) {
		o.altScreen = false
	}
}

// NewFrontend starts the participant program.
func NewFrontend(opts ...FrontendOption) *Frontend {
	o := frontendOptions{altScreen: true}
	for _, opt := range opts {
		opt(&o)
	}

	f := &Frontend{
		events: make(chan timeline.Event, 16),
		done:   make(chan struct{}),
	}
	var progOpts []tea.ProgramOption
	if o.altScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	if o.in != nil {
		progOpts = append(progOpts, tea.WithInput(o.in))
	}
	if o.out != nil {
		progOpts = append(progOpts, tea.WithOutput(o.out))
	}
	f.prog = tea.NewProgram(NewParticipantModel(f.emit), progOpts...)

	go f.run()
	return f
}

func (f *Frontend) run() {
	defer close(f.done)
	_, err := f.prog.Run()

	f.mu.Lock()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		f.err = err
	}
	f.closed = true
	close(f.events)
	f.mu.Unlock()
}

// emit is called from the program goroutine.
func (f *Frontend) emit(ev timeline.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- ev:
	default:
		// The engine reads every step; a full queue means keys were mashed.
	}
}

// Show implements timeline.Frontend.
func (f *Frontend) Show(step timeline.Step) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return timeline.ErrFrontendClosed
	}
	f.prog.Send(stepMsg{step: step})
	return nil
}

// Events implements timeline.Frontend.
func (f *Frontend) Events() <-chan timeline.Event {
	return f.events
}

// Close stops the program and restores the terminal.
func (f *Frontend) Close() error {
	f.prog.Quit()
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Done is closed when the program has exited.
func (f *Frontend) Done() <-chan struct{} {
	return f.done
}

var _ timeline.Frontend = (*Frontend)(nil)
