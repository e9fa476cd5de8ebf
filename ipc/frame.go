// Package ipc implements the length-prefixed msgpack framing spoken
// between the session controller and an external renderer.
//
// Controller to renderer: step and close frames.
// Renderer to controller: hello and event frames.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/numlab/numerosity/timeline"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (1 MiB), including length prefix.
	MaxFrameSize = 1024 * 1024
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the big-endian length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminants.
const (
	StepType  = "step"
	CloseType = "close"
	HelloType = "hello"
	EventType = "event"
)

// StepFrame asks the renderer to show a step.
type StepFrame struct {
	Type string        `msgpack:"type"`
	Step timeline.Step `msgpack:"step"`
}

// CloseFrame tells the renderer the session is over.
type CloseFrame struct {
	Type string `msgpack:"type"`
}

// HelloFrame is the optional first frame of a renderer.
type HelloFrame struct {
	Type     string `msgpack:"type"`
	Renderer string `msgpack:"renderer"`
	Version  string `msgpack:"version"`
}

// EventFrame carries one participant input.
type EventFrame struct {
	Type  string         `msgpack:"type"`
	Event timeline.Event `msgpack:"event"`
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorUnknownType indicates a well-formed frame of unknown type.
	FrameErrorUnknownType
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the stream can no longer be read.
// Partial and oversized frames lose framing; decode errors skip one frame.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads the raw msgpack payload of the next frame.
//
// Errors:
//   - io.EOF: stream ended cleanly between frames
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

// FrameEncoder writes length-prefixed msgpack frames. Not safe for
// concurrent use.
type FrameEncoder struct {
	writer io.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteFrame encodes v and writes it as one frame.
func (e *FrameEncoder) WriteFrame(v any) error {
	frame, err := EncodeFrame(v)
	if err != nil {
		return err
	}
	_, err = e.writer.Write(frame)
	return err
}

// EncodeFrame encodes v as msgpack behind a length prefix.
func EncodeFrame(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("encode frame: payload size %d exceeds maximum %d", len(payload), MaxPayloadSize)
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf, nil
}

// frameTypeHeader is used to peek at the type field without full decode.
type frameTypeHeader struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload into *StepFrame, *CloseFrame, *HelloFrame
// or *EventFrame based on its type field.
func DecodeFrame(payload []byte) (any, error) {
	var head frameTypeHeader
	if err := msgpack.Unmarshal(payload, &head); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode frame type", Err: err}
	}

	var out any
	switch head.Type {
	case StepType:
		out = &StepFrame{}
	case CloseType:
		out = &CloseFrame{}
	case HelloType:
		out = &HelloFrame{}
	case EventType:
		out = &EventFrame{}
	default:
		return nil, &FrameError{Kind: FrameErrorUnknownType, Msg: fmt.Sprintf("unknown frame type %q", head.Type)}
	}
	if err := msgpack.Unmarshal(payload, out); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode " + head.Type + " frame", Err: err}
	}
	return out, nil
}
