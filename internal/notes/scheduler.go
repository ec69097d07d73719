// Package notes keeps a background clinical note draft in sync with the
// growing transcript. Regenerations are debounced and never overlap, so
// the model sees each transcript prefix at most once.
package notes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/observability"
)

// Synthesizer produces a structured note from a transcript
type Synthesizer interface {
	SynthesizeNote(ctx context.Context, transcript string, profile DoctorProfile, language string) (*Draft, error)
}

// TranscriptSource supplies the transcript text and its current length
type TranscriptSource interface {
	Len() int
	Format() string
}

// DraftFunc receives each freshly synthesized draft
type DraftFunc func(draft *Draft)

// SchedulerConfig wires a scheduler
type SchedulerConfig struct {
	UpdateThreshold int           // new entries forcing an immediate regeneration
	Debounce        time.Duration // quiet period for smaller growth
	Synthesizer     Synthesizer
	Source          TranscriptSource
	Profile         DoctorProfile
	Language        string
	OnDraft         DraftFunc // may be nil
	Metrics         *observability.Metrics
	Logger          zerolog.Logger
}

// Scheduler regenerates the note as the transcript grows. Growth at or
// past the threshold triggers immediately; smaller growth waits out the
// debounce. At most one synthesis runs at a time and triggers landing
// while one is in flight are dropped, not queued; the entries they
// represent are picked up because lastProcessed only advances when a
// run starts.
type Scheduler struct {
	cfg SchedulerConfig

	mu            sync.Mutex
	lastProcessed int
	coveredLen    int
	inFlight      bool
	debounce      *time.Timer
	draft         *Draft
	stopped       bool

	logger zerolog.Logger
}

// NewScheduler creates a scheduler
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "note_scheduler").Logger(),
	}
}

// OnGrowth reports the transcript's new length. Wire to
// Assembler.OnGrowth.
func (s *Scheduler) OnGrowth(length int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	growth := length - s.lastProcessed
	if growth <= 0 {
		return
	}

	if growth >= s.cfg.UpdateThreshold {
		s.cancelDebounceLocked()
		s.triggerLocked()
		return
	}

	// Small growth: restart the quiet-period timer.
	s.cancelDebounceLocked()
	s.debounce = time.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped {
			return
		}
		s.triggerLocked()
	})
}

func (s *Scheduler) cancelDebounceLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

// triggerLocked starts a synthesis unless one is already running.
// Callers hold s.mu.
func (s *Scheduler) triggerLocked() {
	if s.inFlight {
		return
	}
	length := s.cfg.Source.Len()
	if length <= s.lastProcessed {
		return
	}

	s.inFlight = true
	s.lastProcessed = length
	go s.synthesize(length)
}

func (s *Scheduler) synthesize(length int) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordNoteStart()
	}

	transcript := s.cfg.Source.Format()
	draft, err := s.cfg.Synthesizer.SynthesizeNote(context.Background(), transcript, s.cfg.Profile, s.cfg.Language)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		// Keep the previous draft. lastProcessed stays advanced so a
		// transient failure does not cause a regeneration storm; the
		// next growth covers these entries anyway.
		s.mu.Unlock()
		s.logger.Warn().Err(err).Int("transcript_len", length).Msg("Note regeneration failed")
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordNoteEnd(false)
			s.cfg.Metrics.RecordError("synthesis", "note_scheduler")
		}
		return
	}
	if s.stopped {
		// Stop raced this run: the final note has already been produced,
		// so this older draft must not surface after it.
		s.mu.Unlock()
		s.logger.Debug().Int("transcript_len", length).Msg("Discarding draft finished after stop")
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordNoteEnd(true)
		}
		return
	}
	s.draft = draft
	s.coveredLen = length
	onDraft := s.cfg.OnDraft
	s.mu.Unlock()

	s.logger.Debug().Int("transcript_len", length).Msg("Note draft regenerated")
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordNoteEnd(true)
	}
	if onDraft != nil {
		onDraft(draft)
	}
}

// Note returns the latest draft and the transcript length it covers
func (s *Scheduler) Note() (*Draft, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.coveredLen
}

// Busy reports whether a synthesis is in flight
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Stop cancels pending debounce timers and ignores further growth. An
// in-flight synthesis is allowed to finish but its draft is discarded;
// the note produced at teardown supersedes it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelDebounceLocked()
}
