package cmd

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/numlab/numerosity/cli/reader"
	"github.com/numlab/numerosity/ipc"
	"github.com/numlab/numerosity/lode"
	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/types"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestReadFlags_IncludesStorage(t *testing.T) {
	names := map[string]bool{}
	for _, f := range readFlags() {
		names[f.Names()[0]] = true
	}
	for _, want := range []string{"format", "tui", "config", "dataset", "storage-backend", "storage-path"} {
		if !names[want] {
			t.Errorf("readFlags missing --%s", want)
		}
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Actual TTY behavior depends on the runtime environment.
	_ = isStderrTTY()
}

func finishedDoc(id string, started time.Time, estimates ...int) *lode.SessionDocument {
	var trials []types.Record
	for i, est := range estimates {
		half, e := 0, est
		trials = append(trials, types.Record{
			Seq:        int64(i + 1),
			Type:       types.RecordTypeTrial,
			Half:       &half,
			Category:   types.CategoryPeople,
			Numerosity: 5,
			Estimate:   &e,
		})
	}
	return &lode.SessionDocument{
		Meta:    types.SessionMeta{SessionID: id, Experiment: "numerosity", StartedAt: started},
		Outcome: types.Outcome{Status: types.OutcomeFinished, Trials: len(trials), Duration: time.Minute},
		Result: &types.ExperimentResult{
			Settings: types.DefaultSettings(),
			RawData:  types.RawData{Trials: trials},
		},
	}
}

// newReadApp wires the read-only commands over a stub reader and captures
// their output.
func newReadApp(t *testing.T, rd reader.Reader) (*cli.App, *bytes.Buffer) {
	t.Helper()
	reader.SetReader(rd)
	t.Cleanup(func() { reader.SetReader(nil) })

	var out bytes.Buffer
	app := cli.NewApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.Commands = []*cli.Command{
		ListCommand(),
		InspectCommand(),
		StatsCommand(),
		DebugCommand(),
		VersionCommand("abc123"),
	}
	app.ExitErrHandler = func(*cli.Context, error) {} // suppress os.Exit
	return app, &out
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("error %v is not a cli.ExitCoder", err)
	}
	return ec.ExitCode()
}

func TestListSessions_JSON(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	app, out := newReadApp(t, reader.NewStubReader(
		finishedDoc("s-old", t0, 5),
		finishedDoc("s-new", t0.Add(time.Hour), 6),
	))

	if err := app.Run([]string{"numerosity", "list", "sessions", "--format", "json"}); err != nil {
		t.Fatalf("list sessions: %v", err)
	}

	var items []reader.ListSessionItem
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if len(items) != 2 || items[0].SessionID != "s-new" || items[1].SessionID != "s-old" {
		t.Errorf("items = %+v, want s-new then s-old", items)
	}
}

func TestListSessions_Limit(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	app, out := newReadApp(t, reader.NewStubReader(
		finishedDoc("s-1", t0, 5),
		finishedDoc("s-2", t0.Add(time.Hour), 6),
	))

	if err := app.Run([]string{"numerosity", "list", "sessions", "--format", "json", "--limit", "1"}); err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	var items []reader.ListSessionItem
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(items) != 1 || items[0].SessionID != "s-2" {
		t.Errorf("items = %+v, want only s-2", items)
	}
}

func TestListSessions_TUIRejected(t *testing.T) {
	app, _ := newReadApp(t, reader.NewStubReader())

	err := app.Run([]string{"numerosity", "list", "sessions", "--tui"})
	if err == nil {
		t.Fatal("expected error for --tui")
	}
	if code := exitCode(t, err); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestInspectSession(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	app, out := newReadApp(t, reader.NewStubReader(finishedDoc("s-1", t0, 4, 6)))

	if err := app.Run([]string{"numerosity", "inspect", "session", "--format", "json", "s-1"}); err != nil {
		t.Fatalf("inspect session: %v", err)
	}
	var resp reader.InspectSessionResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if resp.SessionID != "s-1" || resp.Outcome != "finished" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Records) != 0 {
		t.Errorf("records included without --records: %d", len(resp.Records))
	}
	if len(resp.Cells) != 1 || resp.Cells[0].MeanEstimate != 5 {
		t.Errorf("cells = %+v, want one cell with mean 5", resp.Cells)
	}
}

func TestInspectSession_WithRecords(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	app, out := newReadApp(t, reader.NewStubReader(finishedDoc("s-1", t0, 4, 6)))

	if err := app.Run([]string{"numerosity", "inspect", "session", "--records", "--format", "json", "s-1"}); err != nil {
		t.Fatalf("inspect session: %v", err)
	}
	var resp reader.InspectSessionResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Errorf("records = %d, want 2", len(resp.Records))
	}
}

func TestInspectSession_YAMLKeys(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	app, out := newReadApp(t, reader.NewStubReader(finishedDoc("s-1", t0, 4, 6)))

	if err := app.Run([]string{"numerosity", "inspect", "session", "--records", "--format", "yaml", "s-1"}); err != nil {
		t.Fatalf("inspect session: %v", err)
	}
	got := out.String()
	for _, want := range []string{"session_id: s-1", "mean_estimate: 5", "trialType: trial"} {
		if !strings.Contains(got, want) {
			t.Errorf("yaml output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "sessionid:") {
		t.Errorf("yaml output uses untagged field names:\n%s", got)
	}
}

func TestInspectSession_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"missing id", []string{"numerosity", "inspect", "session"}, "session-id required"},
		{"not found", []string{"numerosity", "inspect", "session", "nope"}, "session not found: nope"},
		{"flags after id", []string{"numerosity", "inspect", "session", "s-1", "--records"}, "flags go before <session-id>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newReadApp(t, reader.NewStubReader())
			err := app.Run(tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := exitCode(t, err); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want %q", err, tt.wantMsg)
			}
		})
	}
}

func TestStats_JSON(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	app, out := newReadApp(t, reader.NewStubReader(
		finishedDoc("s-1", t0, 4, 6),
		finishedDoc("s-2", t0, 8),
	))

	if err := app.Run([]string{"numerosity", "stats", "--format", "json"}); err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats reader.EstimateStats
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if stats.Sessions != 2 || stats.Trials != 3 {
		t.Errorf("sessions=%d trials=%d, want 2 and 3", stats.Sessions, stats.Trials)
	}
	if len(stats.Cells) != 1 || stats.Cells[0].MeanEstimate != 6 {
		t.Errorf("cells = %+v, want one cell with mean 6", stats.Cells)
	}
}

func TestStats_TableRendersCells(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	app, out := newReadApp(t, reader.NewStubReader(finishedDoc("s-1", t0, 5)))

	if err := app.Run([]string{"numerosity", "stats", "--format", "table", "--no-color"}); err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"category", "numerosity", "mean_estimate", "people"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("table missing %q:\n%s", want, out.String())
		}
	}
}

func TestReadCommands_ReaderError(t *testing.T) {
	app, _ := newReadApp(t, &reader.StubReader{Err: errors.New("storage offline")})

	err := app.Run([]string{"numerosity", "stats", "--format", "json"})
	if err == nil || !strings.Contains(err.Error(), "storage offline") {
		t.Errorf("err = %v, want storage offline", err)
	}
}

func TestOpenReader_RequiresStoragePath(t *testing.T) {
	app, _ := newReadApp(t, nil)

	err := app.Run([]string{"numerosity", "list", "sessions"})
	if err == nil {
		t.Fatal("expected error without --storage-path")
	}
	if !strings.Contains(err.Error(), "--storage-path is required") {
		t.Errorf("error should be actionable, got: %v", err)
	}
}

func TestOpenReader_FSDataset(t *testing.T) {
	dir := t.TempDir()
	doc := finishedDoc(types.NewSessionID(), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 5)
	client, err := lode.NewLodeClient(lode.ConfigFor("", doc.Meta), dir)
	if err != nil {
		t.Fatalf("NewLodeClient: %v", err)
	}
	if err := lode.NewStore(client).SaveResult(t.Context(), doc.Meta, doc.Result, doc.Outcome); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	app, out := newReadApp(t, nil)
	if err := app.Run([]string{"numerosity", "list", "sessions", "--format", "json", "--storage-path", dir}); err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	var items []reader.ListSessionItem
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(items) != 1 || items[0].SessionID != doc.Meta.SessionID {
		t.Errorf("items = %+v, want %s", items, doc.Meta.SessionID)
	}
}

func TestVersion_JSON(t *testing.T) {
	app, out := newReadApp(t, nil)

	if err := app.Run([]string{"numerosity", "version", "--format", "json"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if resp.Version != types.Version || resp.Commit != "abc123" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.GoVersion == "" || !strings.Contains(resp.Platform, "/") {
		t.Errorf("build info missing: %+v", resp)
	}
}

func TestDebugPorts(t *testing.T) {
	orig := listPorts
	t.Cleanup(func() { listPorts = orig })

	tests := []struct {
		name    string
		ports   []string
		err     error
		want    []string
		wantErr bool
	}{
		{"two ports", []string{"/dev/ttyACM0", "/dev/ttyUSB0"}, nil, []string{"/dev/ttyACM0", "/dev/ttyUSB0"}, false},
		{"none", nil, nil, []string{}, false},
		{"enumeration fails", nil, errors.New("no permission"), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listPorts = func() ([]string, error) { return tt.ports, tt.err }
			app, out := newReadApp(t, nil)

			err := app.Run([]string{"numerosity", "debug", "ports", "--format", "json"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("debug ports: %v", err)
			}
			var resp PortsResponse
			if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if strings.Join(resp.Ports, ",") != strings.Join(tt.want, ",") || resp.Ports == nil {
				t.Errorf("ports = %v, want %v", resp.Ports, tt.want)
			}
		})
	}
}

func TestDecodeFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := ipc.NewFrameEncoder(&buf)
	frames := []any{
		&ipc.HelloFrame{Type: ipc.HelloType, Renderer: "web", Version: "1.0"},
		&ipc.StepFrame{Type: ipc.StepType, Step: timeline.Step{ID: "h0-b0-t0-fixation", Kind: timeline.KindFixation}},
		&ipc.EventFrame{Type: ipc.EventType, Event: timeline.Event{Kind: timeline.EventSubmit, StepID: "h0-b0-t0-estimate"}},
		&ipc.CloseFrame{Type: ipc.CloseType},
	}
	for _, f := range frames {
		if err := enc.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	// One undecodable payload.
	var prefix [ipc.LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], 1)
	buf.Write(prefix[:])
	buf.WriteByte(0xc1)

	got, err := decodeFrames(&buf)
	if err != nil {
		t.Fatalf("decodeFrames: %v", err)
	}
	wantTypes := []string{ipc.HelloType, ipc.StepType, ipc.EventType, ipc.CloseType, "invalid"}
	if len(got) != len(wantTypes) {
		t.Fatalf("got %d frames, want %d", len(got), len(wantTypes))
	}
	for i, want := range wantTypes {
		if got[i].Type != want || got[i].Index != i {
			t.Errorf("frame %d = %+v, want type %s", i, got[i], want)
		}
	}
	if got[1].Detail != "fixation h0-b0-t0-fixation" {
		t.Errorf("step detail = %q", got[1].Detail)
	}
	if got[4].Detail == "" {
		t.Error("invalid frame should carry the decode error")
	}
}

func TestDecodeFrames_Truncated(t *testing.T) {
	var prefix [ipc.LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], 10)
	in := bytes.NewReader(append(prefix[:], 1, 2, 3))

	got, err := decodeFrames(in)
	if err == nil {
		t.Fatal("expected error for truncated frame")
	}
	if !ipc.IsFatalFrameError(err) {
		t.Errorf("err = %v, want fatal frame error", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d frames, want 0", len(got))
	}
}
