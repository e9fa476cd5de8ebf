package trial

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/results"
	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/trigger"
	"github.com/numlab/numerosity/types"
)

var epoch = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type recordingFirer struct {
	mu    sync.Mutex
	codes []trigger.Code
}

func (r *recordingFirer) Fire(code trigger.Code) {
	r.mu.Lock()
	r.codes = append(r.codes, code)
	r.mu.Unlock()
}

func (r *recordingFirer) fired() []trigger.Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trigger.Code(nil), r.codes...)
}

// hookInterrupter calls hook, then answers with resume.
type hookInterrupter struct {
	resume bool
	hook   func()
	calls  chan struct{}
}

func newHookInterrupter(resume bool, hook func()) *hookInterrupter {
	return &hookInterrupter{resume: resume, hook: hook, calls: make(chan struct{}, 8)}
}

func (h *hookInterrupter) Interrupt(context.Context) (bool, error) {
	if h.hook != nil {
		h.hook()
	}
	h.calls <- struct{}{}
	return h.resume, nil
}

// blockingTransport holds every send until released.
type blockingTransport struct {
	release chan struct{}
	mu      sync.Mutex
	codes   []trigger.Code
}

func (b *blockingTransport) Send(_ context.Context, code trigger.Code) error {
	<-b.release
	b.mu.Lock()
	b.codes = append(b.codes, code)
	b.mu.Unlock()
	return nil
}

func (b *blockingTransport) Kind() string { return trigger.KindStream }
func (b *blockingTransport) Close() error { return nil }

func submitOn(values ...string) timeline.Responder {
	var mu sync.Mutex
	return func(s timeline.Step) []timeline.Event {
		if s.Kind != timeline.KindEstimate {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if len(values) == 0 {
			return nil
		}
		v := values[0]
		values = values[1:]
		return []timeline.Event{{Kind: timeline.EventSubmit, Value: v}}
	}
}

type runResult struct {
	rec types.Record
	err error
}

func runAsync(ctx context.Context, m *Machine, spec types.TrialSpec) <-chan runResult {
	ch := make(chan runResult, 1)
	go func() {
		rec, err := m.Run(ctx, spec, 0, 3)
		ch <- runResult{rec, err}
	}()
	return ch
}

func advance(t *testing.T, clock *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("no timer armed before advancing %s: %v", d, err)
	}
	clock.Advance(d)
}

func await(t *testing.T, ch <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("trial did not finish")
		return runResult{}
	}
}

func spec(jitter float64) types.TrialSpec {
	return types.TrialSpec{
		Stimulus:            types.StimulusRef{Category: types.CategoryPeople, Numerosity: 7, VariantID: 4},
		BlackscreenJitterMs: jitter,
	}
}

func TestRun_TimingIndependentOfTriggerLatency(t *testing.T) {
	tests := []struct {
		name   string
		jitter float64
		want   time.Duration
	}{
		{"no jitter", 0, 3250 * time.Millisecond},
		{"negative jitter", -150, 3100 * time.Millisecond},
		{"positive jitter", 120, 3370 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClockAt(epoch)
			transport := &blockingTransport{release: make(chan struct{})}
			dev := trigger.NewDevice()
			dev.Attach(transport)
			dispatcher := trigger.NewDispatcher(dev, trigger.DispatcherConfig{SendTimeout: time.Minute, DrainTimeout: 5 * time.Second})

			fe := timeline.NewScriptedFrontend(submitOn("7"), clock)
			m := NewMachine(Config{
				Clock:       clock,
				Frontend:    fe,
				Triggers:    dispatcher,
				Interrupter: newHookInterrupter(true, nil),
				Recorder:    results.NewLog(results.WithClock(clock)),
			})

			done := runAsync(t.Context(), m, spec(tt.jitter))
			timing := DefaultTiming()
			advance(t, clock, timing.PreBlank+time.Duration(tt.jitter*float64(time.Millisecond)))
			advance(t, clock, timing.Fixation)
			advance(t, clock, timing.Stimulus)
			advance(t, clock, timing.PostBlank)

			r := await(t, done)
			if r.err != nil {
				t.Fatalf("Run: %v", r.err)
			}

			shown := fe.Shown()
			first, last := shown[0], shown[len(shown)-1]
			if last.Step.Kind != timeline.KindEstimate {
				t.Fatalf("last step = %s, want estimate", last.Step.Kind)
			}
			if got := last.At.Sub(first.At); got != tt.want {
				t.Errorf("phases 1-4 took %s, want %s", got, tt.want)
			}

			close(transport.release)
			if err := dispatcher.Close(); err != nil {
				t.Fatal(err)
			}
			transport.mu.Lock()
			got := append([]trigger.Code(nil), transport.codes...)
			transport.mu.Unlock()
			if len(got) != 5 || got[0] != "0" || got[4] != "4" {
				t.Errorf("delivered codes = %v", got)
			}
		})
	}
}

func TestRun_RecordsTrial(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	firer := &recordingFirer{}
	log := results.NewLog(results.WithClock(clock))
	progress := NewProgress(5)
	collector := metrics.NewCollector("strict", "scripted", "memory", "s")

	m := NewMachine(Config{
		Clock:       clock,
		Frontend:    timeline.NewScriptedFrontend(submitOn("9"), clock),
		Triggers:    firer,
		Interrupter: newHookInterrupter(true, nil),
		Recorder:    log,
		Progress:    progress,
		Metrics:     collector,
	})
	m.SetImageScale(2)

	done := runAsync(t.Context(), m, spec(0))
	for _, d := range []time.Duration{1500, 500, 250, 1000} {
		advance(t, clock, d*time.Millisecond)
	}
	r := await(t, done)
	if r.err != nil {
		t.Fatalf("Run: %v", r.err)
	}

	rec := r.rec
	if rec.Type != types.RecordTypeTrial || *rec.Estimate != 9 || rec.Numerosity != 7 || *rec.VariantID != 4 {
		t.Errorf("record = %+v", rec)
	}
	if *rec.Half != 0 || *rec.Index != 3 {
		t.Errorf("half/index = %d/%d", *rec.Half, *rec.Index)
	}
	if !rec.TrialStart.Equal(epoch) {
		t.Errorf("TrialStart = %v, want %v", rec.TrialStart, epoch)
	}
	if log.Len() != 1 {
		t.Errorf("log len = %d", log.Len())
	}
	if got := progress.Value(); got != 0.025 {
		t.Errorf("progress = %v, want 0.025", got)
	}
	if s := collector.Snapshot(); s.TrialsCompleted != 1 {
		t.Errorf("TrialsCompleted = %d", s.TrialsCompleted)
	}
	w, h := m.ImageSize()
	if w != 2*BaseImageWidthPx || h != w*9/16 {
		t.Errorf("image size = %vx%v", w, h)
	}
	codes := firer.fired()
	want := []trigger.Code{"0", "1", "2", "3", "4"}
	if len(codes) != len(want) {
		t.Fatalf("fired = %v", codes)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("fired[%d] = %s, want %s", i, codes[i], want[i])
		}
	}
}

func TestRun_InterruptDuringStimulusResumes(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	firer := &recordingFirer{}
	fe := timeline.NewScriptedFrontend(submitOn("6"), clock)
	pause := 10 * time.Second
	progress := NewProgress(2)
	var pausedProgress float64
	interrupter := newHookInterrupter(true, func() {
		pausedProgress = progress.Value()
		clock.Advance(pause)
	})

	m := NewMachine(Config{
		Clock:       clock,
		Frontend:    fe,
		Triggers:    firer,
		Interrupter: interrupter,
		Recorder:    results.NewLog(results.WithClock(clock)),
		Progress:    progress,
	})

	done := runAsync(t.Context(), m, spec(0))
	advance(t, clock, 1500*time.Millisecond)
	advance(t, clock, 500*time.Millisecond)
	advance(t, clock, 100*time.Millisecond)
	if err := fe.Emit(timeline.Event{Kind: timeline.EventQuit}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-interrupter.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("interrupter not called")
	}
	advance(t, clock, 150*time.Millisecond)
	advance(t, clock, 1000*time.Millisecond)

	r := await(t, done)
	if r.err != nil {
		t.Fatalf("Run: %v", r.err)
	}

	var stimulusShows []timeline.ShownStep
	var postBlank timeline.ShownStep
	for _, s := range fe.Shown() {
		switch {
		case s.Step.Kind == timeline.KindStimulus:
			stimulusShows = append(stimulusShows, s)
		case s.Step.Kind == timeline.KindBlank && len(stimulusShows) > 0:
			postBlank = s
		}
	}
	if len(stimulusShows) != 2 {
		t.Fatalf("stimulus shown %d times, want 2 (initial + resume)", len(stimulusShows))
	}
	if got := postBlank.At.Sub(stimulusShows[0].At); got != 250*time.Millisecond+pause {
		t.Errorf("stimulus phase lasted %s, want 250ms plus the %s pause", got, pause)
	}
	want := spec(0).Stimulus
	for i, s := range stimulusShows {
		if s.Step.Stimulus == nil || *s.Step.Stimulus != want {
			t.Errorf("stimulus show %d ref = %+v, want %+v", i, s.Step.Stimulus, want)
		}
	}

	if pausedProgress != 0 {
		t.Errorf("progress during pause = %v, want 0", pausedProgress)
	}
	for _, s := range fe.Shown() {
		if s.Step.Progress != 0 {
			t.Errorf("step %s shown with progress %v, want 0", s.Step.ID, s.Step.Progress)
		}
	}
	if got := progress.Value(); got != 0.0625 {
		t.Errorf("progress after trial = %v, want 0.0625", got)
	}

	stimulusTriggers := 0
	for _, c := range firer.fired() {
		if c == trigger.Stimulus {
			stimulusTriggers++
		}
	}
	if stimulusTriggers != 1 {
		t.Errorf("trigger 2 sent %d times, want 1", stimulusTriggers)
	}
	if n := len(firer.fired()); n != 5 {
		t.Errorf("fired %d triggers, want 5: %v", n, firer.fired())
	}
}

func TestRun_AbortDuringFixation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	firer := &recordingFirer{}
	fe := timeline.NewScriptedFrontend(nil, clock)
	log := results.NewLog(results.WithClock(clock))
	interrupter := newHookInterrupter(false, nil)

	m := NewMachine(Config{
		Clock:       clock,
		Frontend:    fe,
		Triggers:    firer,
		Interrupter: interrupter,
		Recorder:    log,
	})

	done := runAsync(t.Context(), m, spec(0))
	advance(t, clock, 1500*time.Millisecond)
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	_ = fe.Emit(timeline.Event{Kind: timeline.EventQuit})

	r := await(t, done)
	if !errors.Is(r.err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", r.err)
	}
	if log.Len() != 0 {
		t.Errorf("aborted trial wrote %d records", log.Len())
	}
	if codes := firer.fired(); len(codes) != 2 {
		t.Errorf("fired = %v, want [0 1]", codes)
	}
}

func TestRun_InvalidEstimatesRetry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	firer := &recordingFirer{}
	fe := timeline.NewScriptedFrontend(submitOn("", "-1", "2.5", "abc", "12"), clock)
	collector := metrics.NewCollector("strict", "scripted", "memory", "s")

	m := NewMachine(Config{
		Clock:       clock,
		Frontend:    fe,
		Triggers:    firer,
		Interrupter: newHookInterrupter(true, nil),
		Recorder:    results.NewLog(results.WithClock(clock)),
		Metrics:     collector,
	})

	done := runAsync(t.Context(), m, spec(0))
	for _, d := range []time.Duration{1500, 500, 250, 1000} {
		advance(t, clock, d*time.Millisecond)
	}
	r := await(t, done)
	if r.err != nil {
		t.Fatalf("Run: %v", r.err)
	}
	if *r.rec.Estimate != 12 {
		t.Errorf("estimate = %d, want 12", *r.rec.Estimate)
	}
	if s := collector.Snapshot(); s.InvalidEstimates != 4 {
		t.Errorf("InvalidEstimates = %d, want 4", s.InvalidEstimates)
	}

	var estimates []timeline.Step
	for _, s := range fe.Shown() {
		if s.Step.Kind == timeline.KindEstimate {
			estimates = append(estimates, s.Step)
		}
	}
	if len(estimates) != 5 {
		t.Fatalf("estimate shown %d times, want 5", len(estimates))
	}
	if estimates[0].Notice != "" || estimates[1].Notice == "" {
		t.Errorf("notices = %q, %q", estimates[0].Notice, estimates[1].Notice)
	}
	responses := 0
	for _, c := range firer.fired() {
		if c == trigger.Response {
			responses++
		}
	}
	if responses != 1 {
		t.Errorf("trigger 4 sent %d times, want 1", responses)
	}
}

func TestRun_FrontendClosed(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	fe := timeline.NewScriptedFrontend(nil, clock)
	m := NewMachine(Config{
		Clock:       clock,
		Frontend:    fe,
		Triggers:    &recordingFirer{},
		Interrupter: newHookInterrupter(true, nil),
		Recorder:    results.NewLog(),
	})

	done := runAsync(t.Context(), m, spec(0))
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	_ = fe.Close()

	if r := await(t, done); !errors.Is(r.err, timeline.ErrFrontendClosed) {
		t.Fatalf("expected ErrFrontendClosed, got %v", r.err)
	}
}
