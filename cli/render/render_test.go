package render

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sessionRow struct {
	SessionID string   `json:"session_id" yaml:"session_id"`
	Outcome   string   `json:"outcome" yaml:"outcome"`
	Trials    int      `json:"trials" yaml:"trials"`
	Order     []string `json:"order" yaml:"order"`
	internal  string
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"Table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"csv", "", true},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if err != nil && !strings.Contains(err.Error(), "json, table, or yaml") {
				t.Errorf("error does not list valid formats: %v", err)
			}
		})
	}
}

func TestRenderer_StructuredFormats(t *testing.T) {
	row := sessionRow{SessionID: "s-1", Outcome: "finished", Trials: 80}
	tests := []struct {
		format Format
		want   []string
	}{
		{FormatJSON, []string{`"session_id": "s-1"`, `"trials": 80`}},
		{FormatYAML, []string{"session_id: s-1", "trials: 80"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewRendererWithWriter(tt.format, false, &buf).Render(row); err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestRenderer_Table_Struct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	row := &sessionRow{SessionID: "s-1", Outcome: "aborted", Trials: 17, internal: "hidden"}
	if err := r.Render(row); err != nil {
		t.Fatalf("Render: %v", err)
	}

	got := buf.String()
	for _, w := range []string{"session_id:", "s-1", "outcome:", "aborted", "trials:", "17", "order:", "[]"} {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q:\n%s", w, got)
		}
	}
	if strings.Contains(got, "hidden") {
		t.Errorf("unexported field rendered:\n%s", got)
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	rows := []*sessionRow{
		{SessionID: "s-1", Outcome: "finished", Trials: 80},
		nil,
		{SessionID: "s-2", Outcome: "aborted", Trials: 3},
	}
	if err := r.Render(rows); err != nil {
		t.Fatalf("Render: %v", err)
	}

	got := buf.String()
	header := strings.SplitN(got, "\n", 2)[0]
	if !strings.Contains(header, "session_id") || !strings.Contains(header, "trials") {
		t.Errorf("header = %q", header)
	}
	if i, j := strings.Index(got, "s-1"), strings.Index(got, "s-2"); i < 0 || j < i {
		t.Errorf("rows missing or out of order:\n%s", got)
	}
}

func TestRenderer_Table_SliceOfMaps(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	rows := []map[string]int{{"n": 5, "estimate": 6}, {"n": 9}}
	if err := r.Render(rows); err != nil {
		t.Fatalf("Render: %v", err)
	}
	header := strings.Fields(strings.SplitN(buf.String(), "\n", 2)[0])
	if len(header) != 2 || header[0] != "estimate" || header[1] != "n" {
		t.Errorf("header = %q, want [estimate n]", header)
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	if err := r.Render([]sessionRow{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := buf.String(); got != "(no results)\n" {
		t.Errorf("got %q", got)
	}
}

func TestRenderer_NoColor_DoesNotAffectJSON(t *testing.T) {
	var colored, plain bytes.Buffer
	row := sessionRow{SessionID: "s-1"}

	if err := NewRendererWithWriter(FormatJSON, false, &colored).Render(row); err != nil {
		t.Fatal(err)
	}
	if err := NewRendererWithWriter(FormatJSON, true, &plain).Render(row); err != nil {
		t.Fatal(err)
	}
	if colored.String() != plain.String() {
		t.Errorf("--no-color changed JSON output")
	}
}

func TestRenderer_Table_MapKeysSorted(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	data := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	a, m, z := strings.Index(got, "alpha:"), strings.Index(got, "mid:"), strings.Index(got, "zeta:")
	if a < 0 || m < 0 || z < 0 || !(a < m && m < z) {
		t.Errorf("map keys not sorted: %q", got)
	}
}

func TestRenderer_Table_FormatsTimeValues(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	type Row struct {
		Started  time.Time     `json:"started" yaml:"started"`
		Duration time.Duration `json:"duration" yaml:"duration"`
		Order    []string      `json:"order" yaml:"order"`
		Missing  *int          `json:"missing" yaml:"missing"`
	}
	data := Row{
		Started:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Duration: 90 * time.Second,
		Order:    []string{"people", "objects"},
	}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	for _, want := range []string{"2026-03-01T09:30:00Z", "1m30s", "people,objects"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %s", want, got)
		}
	}
}

func TestRenderer_Table_NoColorHasNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	type Item struct {
		ID string `json:"id" yaml:"id"`
	}
	if err := r.Render([]Item{{ID: "s-1"}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("--no-color output contains ANSI escapes: %q", buf.String())
	}
}

func TestRenderer_RenderTUI_Unsupported(t *testing.T) {
	r := NewRendererWithWriter(FormatTable, false, &bytes.Buffer{})
	if err := r.RenderTUI("list_sessions", nil); err == nil {
		t.Fatal("expected error for unsupported view")
	}
}
