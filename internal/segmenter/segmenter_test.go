package segmenter

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testSampleRate = 16000

// pushAudio pushes d worth of frames at the given amplitude.
func pushAudio(src *ChanSource, d time.Duration, amplitude int16) {
	frameSamples := 320 // 20ms at 16kHz
	frames := int(d / (20 * time.Millisecond))
	for i := 0; i < frames; i++ {
		frame := make([]int16, frameSamples)
		for j := range frame {
			frame[j] = amplitude
		}
		src.Push(frame)
	}
}

func collect(s *Segmenter) []Segment {
	var segs []Segment
	for seg := range s.Segments() {
		segs = append(segs, seg)
	}
	return segs
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinSegmentDuration = 2 * time.Second
	return cfg
}

func TestSegmenter_PauseCut(t *testing.T) {
	s := New(testConfig(), zerolog.Nop())
	src := NewChanSource(4096)
	go s.Run(src)

	// 12s of speech, a 2s pause, then 5s more speech. The pause is
	// past the minimum duration, so it places exactly one boundary.
	pushAudio(src, 12*time.Second, 5000)
	pushAudio(src, 2*time.Second, 0)
	pushAudio(src, 5*time.Second, 5000)
	src.Close()

	segs := collect(s)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Reason != CutPause {
		t.Errorf("first segment reason = %s, want pause", segs[0].Reason)
	}
	if segs[1].Reason != CutFlush {
		t.Errorf("second segment reason = %s, want flush", segs[1].Reason)
	}
	// First segment holds the speech plus the silence hangover.
	if segs[0].Duration < 13*time.Second || segs[0].Duration > 14*time.Second {
		t.Errorf("first segment duration = %s, want ~13.5s", segs[0].Duration)
	}
}

func TestSegmenter_HardCap(t *testing.T) {
	s := New(testConfig(), zerolog.Nop())
	src := NewChanSource(8192)
	go s.Run(src)

	// 65s of continuous speech with no pauses forces cap cuts at 30s.
	pushAudio(src, 65*time.Second, 5000)
	src.Close()

	segs := collect(s)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	for i, seg := range segs[:2] {
		if seg.Reason != CutCap {
			t.Errorf("segment %d reason = %s, want cap", i, seg.Reason)
		}
		if seg.Duration != 30*time.Second {
			t.Errorf("segment %d duration = %s, want 30s", i, seg.Duration)
		}
	}
	if segs[2].Reason != CutFlush {
		t.Errorf("final segment reason = %s, want flush", segs[2].Reason)
	}
}

func TestSegmenter_ShortPauseDoesNotCut(t *testing.T) {
	s := New(testConfig(), zerolog.Nop())
	src := NewChanSource(4096)
	go s.Run(src)

	// The utterance boundary lands at 300ms speech + 1.5s hangover,
	// under the 2s minimum, so the pause must not cut.
	pushAudio(src, 300*time.Millisecond, 5000)
	pushAudio(src, 2*time.Second, 0)
	pushAudio(src, 1*time.Second, 5000)
	src.Close()

	segs := collect(s)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Reason != CutFlush {
		t.Errorf("segment reason = %s, want flush", segs[0].Reason)
	}
}

func TestSegmenter_GaplessIndices(t *testing.T) {
	s := New(testConfig(), zerolog.Nop())
	src := NewChanSource(16384)
	go s.Run(src)

	for i := 0; i < 4; i++ {
		pushAudio(src, 5*time.Second, 5000)
		pushAudio(src, 2*time.Second, 0)
	}
	src.Close()

	segs := collect(s)
	if len(segs) == 0 {
		t.Fatal("no segments emitted")
	}
	for i, seg := range segs {
		if seg.Index != uint64(i) {
			t.Errorf("segment %d has index %d, want %d", i, seg.Index, i)
		}
	}
}

func TestSegmenter_NoAudioLost(t *testing.T) {
	s := New(testConfig(), zerolog.Nop())
	src := NewChanSource(16384)
	go s.Run(src)

	total := 47 * time.Second
	pushAudio(src, 20*time.Second, 5000)
	pushAudio(src, 3*time.Second, 0)
	pushAudio(src, 24*time.Second, 5000)
	src.Close()

	var sum time.Duration
	for _, seg := range collect(s) {
		sum += seg.Duration
	}
	if sum != total {
		t.Errorf("segment durations sum to %s, want %s", sum, total)
	}
}

func TestSegmenter_EmptyStream(t *testing.T) {
	s := New(testConfig(), zerolog.Nop())
	src := NewChanSource(16)
	go s.Run(src)
	src.Close()

	if segs := collect(s); len(segs) != 0 {
		t.Errorf("got %d segments from empty stream, want 0", len(segs))
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Error("segmenter did not finish")
	}
}

func TestChanSource_CloseIdempotent(t *testing.T) {
	src := NewChanSource(4)
	if err := src.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if src.Push(make([]int16, 320)) {
		t.Error("push after close should report false")
	}
}
