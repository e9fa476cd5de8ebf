package results

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/numlab/numerosity/types"
)

type recordingIngester struct {
	got []types.Record
	err error
}

func (r *recordingIngester) IngestRecord(_ context.Context, rec *types.Record) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, *rec)
	return nil
}

// blockingIngester holds each record until released.
type blockingIngester struct {
	entered chan int64
	release chan struct{}
}

func (b *blockingIngester) IngestRecord(_ context.Context, rec *types.Record) error {
	b.entered <- rec.Seq
	<-b.release
	return nil
}

func TestLog_SlowIngesterDoesNotBlockReaders(t *testing.T) {
	ing := &blockingIngester{entered: make(chan int64, 2), release: make(chan struct{})}
	l := NewLog(WithIngester(ing))

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Append(t.Context(), types.NewQuizRecord(0, types.CategoryPeople, "2", true))
		l.Append(t.Context(), types.NewQuitRecord("1"))
	}()

	select {
	case seq := <-ing.entered:
		if seq != 1 {
			t.Fatalf("first ingested seq = %d, want 1", seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ingester not called")
	}

	read := make(chan int)
	go func() {
		_ = l.Records()
		_ = l.IngestErrors()
		read <- l.Len()
	}()
	select {
	case n := <-read:
		if n != 1 {
			t.Errorf("Len() during ingest = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("readers blocked while the ingester is busy")
	}

	ing.release <- struct{}{}
	select {
	case seq := <-ing.entered:
		if seq != 2 {
			t.Errorf("second ingested seq = %d, want 2", seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second record not forwarded")
	}
	ing.release <- struct{}{}
	<-done

	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestLog_AppendAssignsSeqAndTimestamp(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	ing := &recordingIngester{}
	l := NewLog(WithClock(clock), WithIngester(ing))

	l.Append(t.Context(), types.NewQuizRecord(0, types.CategoryPeople, "2", true))
	clock.Advance(time.Second)
	stored := l.Append(t.Context(), types.NewQuitRecord("1"))

	if stored.Seq != 2 {
		t.Errorf("Seq = %d, want 2", stored.Seq)
	}
	if want := clock.Now().UTC(); !stored.TS.Equal(want) {
		t.Errorf("TS = %v, want %v", stored.TS, want)
	}
	if len(ing.got) != 2 || ing.got[0].Seq != 1 {
		t.Errorf("ingested = %+v", ing.got)
	}
	last, ok := l.Last()
	if !ok || last.Type != types.RecordTypeQuit {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestLog_IngestFailureKeepsRecord(t *testing.T) {
	l := NewLog(WithIngester(&recordingIngester{err: errors.New("disk full")}))
	l.Append(t.Context(), types.NewQuitRecord("0"))

	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	if l.IngestErrors() != 1 {
		t.Errorf("IngestErrors() = %d, want 1", l.IngestErrors())
	}
}

func TestLog_ResultShape(t *testing.T) {
	l := NewLog()
	spec := types.TrialSpec{Stimulus: types.StimulusRef{Category: types.CategoryObjects, Numerosity: 6, VariantID: 2}}
	l.Append(t.Context(), types.NewQuizRecord(0, types.CategoryObjects, "2", true))
	l.Append(t.Context(), types.NewTrialRecord(spec, 0, 0, 6, time.Now()))

	settings := types.DefaultSettings()
	res := l.Result(settings)
	if len(res.RawData.Trials) != 2 {
		t.Fatalf("rawData.trials len = %d", len(res.RawData.Trials))
	}
	if len(l.Trials()) != 1 {
		t.Errorf("Trials() len = %d, want 1", len(l.Trials()))
	}
	if res.Settings != settings {
		t.Errorf("settings not carried: %+v", res.Settings)
	}
}
