package trial

import (
	"errors"
	"math"
	"testing"
)

func TestParseEstimate(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"12", 12, false},
		{" 7 ", 7, false},
		{"", 0, true},
		{"   ", 0, true},
		{"-1", 0, true},
		{"2.5", 0, true},
		{"abc", 0, true},
		{"1e3", 0, true},
		{"+4", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEstimate(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEstimate) {
					t.Fatalf("ParseEstimate(%q) error = %v, want ErrInvalidEstimate", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseEstimate(%q) = %d, %v", tt.in, got, err)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	p := NewProgress(5)
	for range 40 {
		p.Advance()
	}
	if p.Value() != 1 {
		t.Errorf("after 40 trials progress = %v, want 1", p.Value())
	}
	p.Advance()
	if p.Value() != 1 {
		t.Errorf("progress exceeded 1: %v", p.Value())
	}

	q := NewProgress(3)
	if got := q.Advance(); got != 0.041667 {
		t.Errorf("first step = %v, want 0.041667", got)
	}
	for range 23 {
		q.Advance()
	}
	if math.Abs(q.Value()-1) > 1e-4 {
		t.Errorf("after 24 trials progress = %v", q.Value())
	}

	var nilProgress *Progress
	if nilProgress.Advance() != 0 || nilProgress.Value() != 0 {
		t.Error("nil progress should be inert")
	}
}
