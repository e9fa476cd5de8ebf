package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/types"
)

// encodeFrame encodes a payload with length prefix.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func mustFrame(t *testing.T, v any) []byte {
	t.Helper()
	frame, err := EncodeFrame(v)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	return frame
}

func TestEncodeDecode_Step(t *testing.T) {
	step := timeline.Step{
		ID:       "h0-t03-stimulus",
		Kind:     timeline.KindStimulus,
		Stimulus: &types.StimulusRef{Category: types.CategoryObjects, Numerosity: 7, VariantID: 4},
		Duration: 250 * time.Millisecond,
		Progress: 0.0125,
	}

	frame := mustFrame(t, &StepFrame{Type: StepType, Step: step})
	if got := binary.BigEndian.Uint32(frame[:LengthPrefixSize]); int(got) != len(frame)-LengthPrefixSize {
		t.Fatalf("length prefix = %d, want %d", got, len(frame)-LengthPrefixSize)
	}

	payload, err := NewFrameDecoder(bytes.NewReader(frame)).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	decoded, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	sf, ok := decoded.(*StepFrame)
	if !ok {
		t.Fatalf("decoded type = %T, want *StepFrame", decoded)
	}
	if sf.Step.ID != step.ID || sf.Step.Kind != step.Kind || sf.Step.Duration != step.Duration {
		t.Errorf("step = %+v", sf.Step)
	}
	if sf.Step.Stimulus == nil || *sf.Step.Stimulus != *step.Stimulus {
		t.Errorf("stimulus = %+v", sf.Step.Stimulus)
	}
}

func TestDecodeFrame_Types(t *testing.T) {
	tests := []struct {
		name  string
		frame any
		check func(any) bool
	}{
		{"hello", &HelloFrame{Type: HelloType, Renderer: "web", Version: "1.2.0"}, func(v any) bool {
			h, ok := v.(*HelloFrame)
			return ok && h.Renderer == "web" && h.Version == "1.2.0"
		}},
		{"event", &EventFrame{Type: EventType, Event: timeline.Event{Kind: timeline.EventSubmit, StepID: "s", Value: "6"}}, func(v any) bool {
			e, ok := v.(*EventFrame)
			return ok && e.Event.Value == "6" && e.Event.Kind == timeline.EventSubmit
		}},
		{"close", &CloseFrame{Type: CloseType}, func(v any) bool {
			_, ok := v.(*CloseFrame)
			return ok
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := msgpack.Marshal(tt.frame)
			if err != nil {
				t.Fatal(err)
			}
			got, err := DecodeFrame(payload)
			if err != nil {
				t.Fatalf("DecodeFrame failed: %v", err)
			}
			if !tt.check(got) {
				t.Errorf("decoded = %#v", got)
			}
		})
	}
}

func TestDecodeFrame_Errors(t *testing.T) {
	unknown, _ := msgpack.Marshal(map[string]any{"type": "bogus"})
	tests := []struct {
		name    string
		payload []byte
		kind    FrameErrorKind
	}{
		{"garbage", []byte{0xc1}, FrameErrorDecode},
		{"unknown type", unknown, FrameErrorUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.payload)
			var fe *FrameError
			if !errors.As(err, &fe) || fe.Kind != tt.kind {
				t.Fatalf("error = %v, want kind %d", err, tt.kind)
			}
			if fe.IsFatal() {
				t.Error("decode errors must not be fatal")
			}
		})
	}
}

func TestFrameDecoder_Errors(t *testing.T) {
	t.Run("clean EOF", func(t *testing.T) {
		_, err := NewFrameDecoder(bytes.NewReader(nil)).ReadFrame()
		if err != io.EOF {
			t.Errorf("error = %v, want io.EOF", err)
		}
	})
	t.Run("partial prefix", func(t *testing.T) {
		_, err := NewFrameDecoder(bytes.NewReader([]byte{0, 0})).ReadFrame()
		if !IsFatalFrameError(err) {
			t.Errorf("error = %v, want fatal", err)
		}
	})
	t.Run("partial payload", func(t *testing.T) {
		frame := encodeFrame([]byte{1, 2, 3, 4})
		_, err := NewFrameDecoder(bytes.NewReader(frame[:6])).ReadFrame()
		var fe *FrameError
		if !errors.As(err, &fe) || fe.Kind != FrameErrorPartial {
			t.Errorf("error = %v, want partial", err)
		}
	})
	t.Run("too large", func(t *testing.T) {
		var prefix [LengthPrefixSize]byte
		binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)
		_, err := NewFrameDecoder(bytes.NewReader(prefix[:])).ReadFrame()
		var fe *FrameError
		if !errors.As(err, &fe) || fe.Kind != FrameErrorTooLarge {
			t.Errorf("error = %v, want too large", err)
		}
	})
}

func TestFrameDecoder_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	for _, v := range []string{"5", "6", "7"} {
		if err := enc.WriteFrame(&EventFrame{Type: EventType, Event: timeline.Event{Kind: timeline.EventSubmit, Value: v}}); err != nil {
			t.Fatal(err)
		}
	}

	dec := NewFrameDecoder(&buf)
	var got []string
	for {
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		fr, err := DecodeFrame(payload)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, fr.(*EventFrame).Event.Value)
	}
	if len(got) != 3 || got[0] != "5" || got[2] != "7" {
		t.Errorf("values = %v", got)
	}
}

func TestFrontend_RoundTrip(t *testing.T) {
	rendererIn, controllerOut := io.Pipe()
	controllerIn, rendererOut := io.Pipe()
	collector := metrics.NewCollector("", "process", "", "")

	fe := NewFrontend(controllerIn, controllerOut, WithMetrics(collector))

	// Fake renderer: hello, one garbage frame, then answer every step.
	go func() {
		enc := NewFrameEncoder(rendererOut)
		_ = enc.WriteFrame(&HelloFrame{Type: HelloType, Renderer: "fake", Version: "0.1"})
		_, _ = rendererOut.Write(encodeFrame([]byte{0xc1}))
		dec := NewFrameDecoder(rendererIn)
		for {
			payload, err := dec.ReadFrame()
			if err != nil {
				_ = rendererOut.Close()
				return
			}
			fr, err := DecodeFrame(payload)
			if err != nil {
				continue
			}
			switch f := fr.(type) {
			case *StepFrame:
				_ = enc.WriteFrame(&EventFrame{Type: EventType, Event: timeline.Event{Kind: timeline.EventSubmit, StepID: f.Step.ID, Value: "8"}})
			case *CloseFrame:
				_ = rendererOut.Close()
				return
			}
		}
	}()

	if err := fe.Show(timeline.Step{ID: "h0-t00-estimate", Kind: timeline.KindEstimate}); err != nil {
		t.Fatalf("Show failed: %v", err)
	}
	ev, err := timeline.Next(t.Context(), fe, "h0-t00-estimate")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Value != "8" {
		t.Errorf("value = %q, want 8", ev.Value)
	}
	if h := fe.Hello(); h == nil || h.Renderer != "fake" {
		t.Errorf("hello = %+v", h)
	}
	if got := collector.Snapshot().FrontendDecodeErrors; got != 1 {
		t.Errorf("FrontendDecodeErrors = %d, want 1", got)
	}

	if err := fe.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-fe.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not exit")
	}
	if err := fe.Show(timeline.Step{ID: "late"}); !errors.Is(err, timeline.ErrFrontendClosed) {
		t.Errorf("Show after Close = %v, want ErrFrontendClosed", err)
	}
	if fe.Err() != nil {
		t.Errorf("Err() = %v, want nil", fe.Err())
	}
}

func TestFrontend_FatalStreamClosesEvents(t *testing.T) {
	fe := NewFrontend(bytes.NewReader([]byte{0, 0, 1}), io.Discard)
	if _, err := timeline.Next(t.Context(), fe, "x"); !errors.Is(err, timeline.ErrFrontendClosed) {
		t.Fatalf("Next error = %v, want ErrFrontendClosed", err)
	}
	<-fe.Done()
	if !IsFatalFrameError(fe.Err()) {
		t.Errorf("Err() = %v, want fatal frame error", fe.Err())
	}
}
