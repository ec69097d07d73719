package transcript

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/segmenter"
)

type fakeTranscriber struct {
	mu      sync.Mutex
	calls   int
	fail    bool
	block   chan struct{} // if set, calls wait on this
	turns   []SpeakerTurn
	gotCtxs []string // recentContext per call
}

func (f *fakeTranscriber) TranscribeSegment(ctx context.Context, audio []byte, mimeType, language, recentContext string) ([]SpeakerTurn, error) {
	f.mu.Lock()
	f.calls++
	f.gotCtxs = append(f.gotCtxs, recentContext)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.fail {
		return nil, errors.New("model unavailable")
	}
	return f.turns, nil
}

type fakeSaver struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (f *fakeSaver) SaveEntry(ctx context.Context, sessionID string, entry Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func waitDrained(t *testing.T, c *DispatchCounter) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !c.Drained() {
		select {
		case <-deadline:
			t.Fatal("counter never drained")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func segment(index uint64) segmenter.Segment {
	return segmenter.Segment{Index: index, Bytes: []byte("wav"), MimeType: "audio/wav"}
}

func TestDispatcher_Dispatch_AppendsAndPersists(t *testing.T) {
	tr := &fakeTranscriber{turns: []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "take two daily"}}}
	saver := &fakeSaver{}
	assembler := NewAssembler()
	counter := &DispatchCounter{}

	var emitted []Entry
	var emitMu sync.Mutex
	d := NewDispatcher(DispatcherConfig{
		SessionID:   "s1",
		Language:    "en-US",
		Transcriber: tr,
		Assembler:   assembler,
		Counter:     counter,
		Saver:       saver,
		OnEntries: func(entries []Entry) {
			emitMu.Lock()
			emitted = append(emitted, entries...)
			emitMu.Unlock()
		},
		Logger: zerolog.Nop(),
	})

	d.Dispatch(context.Background(), segment(0))
	waitDrained(t, counter)

	if assembler.Len() != 1 {
		t.Errorf("assembler len = %d, want 1", assembler.Len())
	}
	emitMu.Lock()
	if len(emitted) != 1 || emitted[0].Text != "take two daily" {
		t.Errorf("emitted = %+v, want one entry", emitted)
	}
	emitMu.Unlock()
	saver.mu.Lock()
	if len(saver.entries) != 1 {
		t.Errorf("persisted %d entries, want 1", len(saver.entries))
	}
	saver.mu.Unlock()
}

func TestDispatcher_Dispatch_FailureStillCompletes(t *testing.T) {
	tr := &fakeTranscriber{fail: true}
	assembler := NewAssembler()
	counter := &DispatchCounter{}
	d := NewDispatcher(DispatcherConfig{
		Transcriber: tr,
		Assembler:   assembler,
		Counter:     counter,
		Logger:      zerolog.Nop(),
	})

	d.Dispatch(context.Background(), segment(0))
	d.Dispatch(context.Background(), segment(1))
	waitDrained(t, counter)

	if assembler.Len() != 0 {
		t.Errorf("failed transcriptions appended %d entries", assembler.Len())
	}
}

func TestDispatcher_Dispatch_DoesNotBlockOnSlowSegment(t *testing.T) {
	block := make(chan struct{})
	tr := &fakeTranscriber{block: block, turns: []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "x"}}}
	counter := &DispatchCounter{}
	d := NewDispatcher(DispatcherConfig{
		Transcriber: tr,
		Assembler:   NewAssembler(),
		Counter:     counter,
		Logger:      zerolog.Nop(),
	})

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), segment(0))
		d.Dispatch(context.Background(), segment(1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked while a segment was in flight")
	}

	if counter.Drained() {
		t.Error("counter drained while segments in flight")
	}
	if counter.Pending() != 2 {
		t.Errorf("pending = %d, want 2", counter.Pending())
	}

	close(block)
	waitDrained(t, counter)
}

func TestDispatcher_Dispatch_ContextSnapshotAtDispatch(t *testing.T) {
	tr := &fakeTranscriber{turns: []SpeakerTurn{{Speaker: SpeakerPatient, Text: "later"}}}
	assembler := NewAssembler()
	assembler.Append(0, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "earlier"}})
	counter := &DispatchCounter{}
	d := NewDispatcher(DispatcherConfig{
		Transcriber: tr,
		Assembler:   assembler,
		Counter:     counter,
		Logger:      zerolog.Nop(),
	})

	d.Dispatch(context.Background(), segment(1))
	waitDrained(t, counter)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.gotCtxs) != 1 || tr.gotCtxs[0] != "Doctor: earlier" {
		t.Errorf("recent context = %q, want %q", tr.gotCtxs, "Doctor: earlier")
	}
}

func TestDispatchCounter_Drained(t *testing.T) {
	c := &DispatchCounter{}
	if !c.Drained() {
		t.Error("fresh counter should be drained")
	}

	c.IncDispatched()
	if c.Drained() {
		t.Error("counter with pending work reported drained")
	}

	c.IncCompleted()
	if !c.Drained() {
		t.Error("counter should drain once completions catch up")
	}
	if c.Pending() != 0 {
		t.Errorf("pending = %d, want 0", c.Pending())
	}
}
