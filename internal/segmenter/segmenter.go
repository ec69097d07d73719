// Package segmenter cuts a continuous PCM stream into bounded utterance
// segments. Boundaries land on speech pauses when possible so a segment
// never splits a word, with a hard duration cap as backstop.
package segmenter

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/audio"
)

// CutReason explains why a segment boundary was placed
type CutReason string

const (
	CutPause CutReason = "pause" // VAD detected end of an utterance
	CutCap   CutReason = "cap"   // hard duration cap reached
	CutFlush CutReason = "flush" // stream ended, remainder flushed
)

// Segment is one encoded slice of the session audio
type Segment struct {
	Index      uint64
	Bytes      []byte // WAV, mono PCM-16
	MimeType   string
	Duration   time.Duration
	Reason     CutReason
	CapturedAt time.Time
}

// Source supplies PCM frames to the segmenter
type Source interface {
	// Frames returns the frame channel. The channel closing signals
	// end of stream.
	Frames() <-chan []int16
	Close() error
}

// Config holds segmenter tuning
type Config struct {
	SampleRate         int
	SegmentDuration    time.Duration // hard cap per segment
	MinSegmentDuration time.Duration // pauses below this do not cut
	VADThreshold       float64
	VADHangover        time.Duration
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		SampleRate:         16000,
		SegmentDuration:    30 * time.Second,
		MinSegmentDuration: 3 * time.Second,
		VADThreshold:       0.015,
		VADHangover:        1500 * time.Millisecond,
	}
}

// Segmenter accumulates frames and emits segments. All stream positions
// are derived from sample counts, so for a given input the boundaries
// are deterministic regardless of arrival timing.
type Segmenter struct {
	config  Config
	vad     *audio.VADDetector
	logger  zerolog.Logger
	pending []int16
	index   uint64
	out     chan Segment
	done    chan struct{}
}

// New creates a segmenter
func New(config Config, logger zerolog.Logger) *Segmenter {
	return &Segmenter{
		config: config,
		vad: audio.NewVADDetector(&audio.VADConfig{
			EnergyThreshold: config.VADThreshold,
			Hangover:        config.VADHangover,
			SampleRate:      config.SampleRate,
		}),
		logger: logger.With().Str("component", "segmenter").Logger(),
		out:    make(chan Segment, 16),
		done:   make(chan struct{}),
	}
}

// Segments returns the output channel. It is closed after the source
// ends and the final remainder has been flushed.
func (s *Segmenter) Segments() <-chan Segment {
	return s.out
}

// Run consumes the source until its frame channel closes, then flushes
// any remainder and closes the output channel. Call in a goroutine.
func (s *Segmenter) Run(source Source) {
	defer close(s.out)
	defer close(s.done)

	for frame := range source.Frames() {
		s.processFrame(frame)
	}
	s.flush()
}

// Done is closed once Run has finished flushing
func (s *Segmenter) Done() <-chan struct{} {
	return s.done
}

func (s *Segmenter) processFrame(frame []int16) {
	s.pending = append(s.pending, frame...)
	_, _, speechEnded := s.vad.ProcessFrame(frame)

	elapsed := audio.Duration(len(s.pending), s.config.SampleRate)

	switch {
	case elapsed >= s.config.SegmentDuration:
		s.cut(CutCap)
	case speechEnded && elapsed >= s.config.MinSegmentDuration:
		s.cut(CutPause)
	}
}

// flush emits whatever is pending, regardless of minimum duration, so
// no audio is lost when the stream ends.
func (s *Segmenter) flush() {
	if len(s.pending) == 0 {
		return
	}
	s.cut(CutFlush)
}

func (s *Segmenter) cut(reason CutReason) {
	samples := s.pending
	s.pending = nil
	s.vad.Reset()

	wav, err := audio.EncodeWAV(samples, s.config.SampleRate)
	if err != nil {
		s.logger.Error().Err(err).Uint64("segment_index", s.index).Msg("Failed to encode segment")
		return
	}

	seg := Segment{
		Index:      s.index,
		Bytes:      wav,
		MimeType:   audio.MimeTypeWAV,
		Duration:   audio.Duration(len(samples), s.config.SampleRate),
		Reason:     reason,
		CapturedAt: time.Now(),
	}
	s.index++

	s.logger.Debug().
		Uint64("segment_index", seg.Index).
		Str("reason", string(reason)).
		Dur("duration", seg.Duration).
		Msg("Segment cut")

	s.out <- seg
}
