package tui

import (
	"io"
	"testing"
	"time"

	"github.com/numlab/numerosity/timeline"
)

func TestFrontend_PipedInput(t *testing.T) {
	in, keys := io.Pipe()
	t.Cleanup(func() { _ = keys.Close() })

	f := NewFrontend(WithIO(in, io.Discard), WithoutAltScreen())
	step := timeline.Step{ID: "h0-t01-estimate", Kind: timeline.KindEstimate,
		Input: &timeline.InputSpec{Numeric: true, Required: true}}
	if err := f.Show(step); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if _, err := io.WriteString(keys, "7\r"); err != nil {
		t.Fatalf("write keys: %v", err)
	}

	select {
	case ev := <-f.Events():
		if ev.Kind != timeline.EventSubmit || ev.Value != "7" || ev.StepID != step.ID {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event within 5s")
	}

	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := f.Show(step); err != timeline.ErrFrontendClosed {
		t.Errorf("Show after Close = %v, want ErrFrontendClosed", err)
	}
}
