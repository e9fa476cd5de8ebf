package ipc

import (
	"errors"
	"io"
	"sync"

	"github.com/numlab/numerosity/log"
	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/timeline"
)

// Frontend adapts a renderer speaking frames over a reader/writer pair to
// timeline.Frontend.
//
// Undecodable frames are logged, counted and skipped. A fatal framing
// error or EOF closes the event channel.
type Frontend struct {
	enc    *FrameEncoder
	closer io.Closer

	wmu    sync.Mutex // guards enc and closed
	closed bool

	events chan timeline.Event
	done   chan struct{}
	stop   chan struct{}

	mu    sync.Mutex // guards hello and err
	hello *HelloFrame
	err   error

	logger    *log.Logger
	collector *metrics.Collector
}

// FrontendOption configures a Frontend.
type FrontendOption func(*Frontend)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) FrontendOption {
	return func(f *Frontend) { f.logger = l }
}

// WithMetrics sets the collector counting decode errors.
func WithMetrics(c *metrics.Collector) FrontendOption {
	return func(f *Frontend) { f.collector = c }
}

// NewFrontend starts reading frames from r. Steps are written to w; if w
// is an io.Closer it is closed by Close.
func NewFrontend(r io.Reader, w io.Writer, opts ...FrontendOption) *Frontend {
	f := &Frontend{
		enc:    NewFrameEncoder(w),
		events: make(chan timeline.Event, 16),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		logger: log.NewNop(),
	}
	if c, ok := w.(io.Closer); ok {
		f.closer = c
	}
	for _, opt := range opts {
		opt(f)
	}
	go f.readLoop(NewFrameDecoder(r))
	return f
}

// Show writes a step frame.
func (f *Frontend) Show(step timeline.Step) error {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	if f.closed {
		return timeline.ErrFrontendClosed
	}
	if err := f.enc.WriteFrame(&StepFrame{Type: StepType, Step: step}); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return timeline.ErrFrontendClosed
		}
		return err
	}
	return nil
}

// Events implements timeline.Frontend.
func (f *Frontend) Events() <-chan timeline.Event {
	return f.events
}

// Close sends a close frame and closes the writer. The event channel
// closes once the renderer ends its stream.
func (f *Frontend) Close() error {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.stop)
	// The renderer may already be gone.
	_ = f.enc.WriteFrame(&CloseFrame{Type: CloseType})
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Done is closed when the read loop exits.
func (f *Frontend) Done() <-chan struct{} {
	return f.done
}

// Hello returns the renderer's hello frame, if one arrived.
func (f *Frontend) Hello() *HelloFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hello
}

// Err returns the fatal read error that ended the stream, if any.
func (f *Frontend) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Frontend) readLoop(dec *FrameDecoder) {
	defer close(f.done)
	defer close(f.events)

	for {
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			return
		}
		if err != nil {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			f.logger.Error("renderer stream failed", map[string]any{"error": err.Error()})
			return
		}

		frame, err := DecodeFrame(payload)
		if err != nil {
			f.collector.IncFrontendDecodeError()
			f.logger.Warn("dropping renderer frame", map[string]any{"error": err.Error()})
			continue
		}

		switch fr := frame.(type) {
		case *EventFrame:
			select {
			case f.events <- fr.Event:
			case <-f.stop:
			}
		case *HelloFrame:
			f.mu.Lock()
			f.hello = fr
			f.mu.Unlock()
			f.logger.Info("renderer connected", map[string]any{
				"renderer": fr.Renderer,
				"version":  fr.Version,
			})
		default:
			f.collector.IncFrontendDecodeError()
			f.logger.Warn("unexpected frame from renderer", map[string]any{"type": frameType(frame)})
		}
	}
}

func frameType(frame any) string {
	switch frame.(type) {
	case *StepFrame:
		return StepType
	case *CloseFrame:
		return CloseType
	default:
		return "unknown"
	}
}

var _ timeline.Frontend = (*Frontend)(nil)
