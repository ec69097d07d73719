// Package session runs one recording session end to end: audio fan-out
// to the segmenter and dictation channel, background note keeping, and
// the active -> processing -> review teardown sequence.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/audio"
	"github.com/aivanahealth/scribe-gateway/internal/dictation"
	"github.com/aivanahealth/scribe-gateway/internal/notes"
	"github.com/aivanahealth/scribe-gateway/internal/observability"
	"github.com/aivanahealth/scribe-gateway/internal/segmenter"
	"github.com/aivanahealth/scribe-gateway/internal/transcript"
)

// Persister stores session artifacts. Implemented by store.Client.
type Persister interface {
	transcript.EntrySaver
	SaveNote(ctx context.Context, sessionID string, draft *notes.Draft) error
	CloseSession(ctx context.Context, sessionID string, duration time.Duration) error
}

// Callbacks push session output to the client. Any may be nil.
type Callbacks struct {
	OnPhase     func(phase Phase)
	OnEntries   func(entries []transcript.Entry)
	OnDraft     func(draft *notes.Draft)
	OnDictation func(text string, final bool)
}

// Config wires one session
type Config struct {
	ID       string
	Language string
	Profile  notes.DoctorProfile

	Transcriber transcript.Transcriber
	Synthesizer notes.Synthesizer
	Recognizer  dictation.Recognizer // nil disables live captions
	Persister   Persister            // nil disables persistence

	Segmenter       segmenter.Config
	FrameSize       int
	UpdateThreshold int
	Debounce        time.Duration
	DrainTimeout    time.Duration
	DrainPoll       time.Duration
	Dictation       dictation.Config // Recognizer/Language/OnUpdate filled in here

	Callbacks Callbacks
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// Session is one live recording session
type Session struct {
	cfg    Config
	logger zerolog.Logger

	source    *segmenter.ChanSource
	seg       *segmenter.Segmenter
	assembler *transcript.Assembler
	counter   *transcript.DispatchCounter
	disp      *transcript.Dispatcher
	scheduler *notes.Scheduler
	dict      *dictation.Channel

	mu           sync.Mutex
	phase        Phase
	startedAt    time.Time
	stopOnce     sync.Once
	dispatchDone chan struct{}
}

// New assembles a session's pipeline without starting it
func New(cfg Config) *Session {
	logger := cfg.Logger.With().Str("session_id", cfg.ID).Logger()

	s := &Session{
		cfg:          cfg,
		logger:       logger,
		source:       segmenter.NewChanSource(4096),
		seg:          segmenter.New(cfg.Segmenter, logger),
		assembler:    transcript.NewAssembler(),
		counter:      &transcript.DispatchCounter{},
		phase:        PhaseActive,
		dispatchDone: make(chan struct{}),
	}

	s.disp = transcript.NewDispatcher(transcript.DispatcherConfig{
		SessionID:   cfg.ID,
		Language:    cfg.Language,
		Transcriber: cfg.Transcriber,
		Assembler:   s.assembler,
		Counter:     s.counter,
		Saver:       persisterOrNil(cfg.Persister),
		Metrics:     cfg.Metrics,
		OnEntries:   cfg.Callbacks.OnEntries,
		Logger:      logger,
	})

	s.scheduler = notes.NewScheduler(notes.SchedulerConfig{
		UpdateThreshold: cfg.UpdateThreshold,
		Debounce:        cfg.Debounce,
		Synthesizer:     cfg.Synthesizer,
		Source:          s.assembler,
		Profile:         cfg.Profile,
		Language:        cfg.Language,
		OnDraft:         cfg.Callbacks.OnDraft,
		Metrics:         cfg.Metrics,
		Logger:          logger,
	})
	s.assembler.OnGrowth(s.scheduler.OnGrowth)

	if cfg.Recognizer != nil {
		dcfg := cfg.Dictation
		dcfg.Recognizer = cfg.Recognizer
		dcfg.Language = cfg.Language
		dcfg.OnUpdate = cfg.Callbacks.OnDictation
		dcfg.Metrics = cfg.Metrics
		dcfg.Logger = logger
		s.dict = dictation.New(dcfg)
	}

	return s
}

// persisterOrNil avoids a typed-nil interface reaching the dispatcher
func persisterOrNil(p Persister) transcript.EntrySaver {
	if p == nil {
		return nil
	}
	return p
}

// Start begins capture. The segments loop runs until Stop.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSessionStart()
	}

	go s.seg.Run(s.source)
	go func() {
		defer close(s.dispatchDone)
		for seg := range s.seg.Segments() {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.RecordSegmentCut(string(seg.Reason))
			}
			s.disp.Dispatch(ctx, seg)
		}
	}()

	if s.dict != nil {
		s.dict.Start(ctx)
	}

	s.logger.Info().Str("language", s.cfg.Language).Msg("Session started")
	s.emitPhase(PhaseActive)
}

// PushAudio accepts one chunk of little-endian PCM-16 audio and fans it
// out to the segmenter and the dictation channel.
func (s *Session) PushAudio(data []byte) {
	if s.Phase() != PhaseActive {
		return
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordAudioBytes(int64(len(data)))
	}

	if s.dict != nil {
		s.dict.SendAudio(data)
	}

	samples, err := audio.SamplesFromBytes(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Dropping malformed audio chunk")
		return
	}

	frameSize := s.cfg.FrameSize
	if frameSize <= 0 {
		frameSize = 320
	}
	for start := 0; start < len(samples); start += frameSize {
		end := start + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		if !s.source.Push(samples[start:end]) {
			s.logger.Warn().Msg("Segmenter behind, dropping audio frame")
		}
	}
}

// Phase returns the current lifecycle phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Transcript returns the ordered transcript so far
func (s *Session) Transcript() []transcript.Entry {
	return s.assembler.Ordered()
}

// Stop runs the teardown sequence and returns the final note, which may
// be nil when the transcript is empty or synthesis failed. Idempotent;
// later calls return the recorded outcome.
func (s *Session) Stop(ctx context.Context) *notes.Draft {
	var final *notes.Draft
	s.stopOnce.Do(func() {
		final = s.stop(ctx)
	})
	if final == nil {
		final, _ = s.scheduler.Note()
	}
	return final
}

func (s *Session) stop(ctx context.Context) *notes.Draft {
	s.setPhase(PhaseProcessing)

	// Dictation intent is cleared before anything else so its provider
	// teardown is not mistaken for a crash.
	if s.dict != nil {
		s.dict.Stop()
	}

	// Closing the source makes the segmenter flush its remainder; the
	// dispatch loop then drains the segment channel and exits.
	s.source.Close()
	<-s.dispatchDone

	s.waitForDrain(ctx)
	s.scheduler.Stop()

	final := s.finalNote(ctx)

	if s.cfg.Persister != nil {
		s.persistFinal(final)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSessionEnd()
	}

	s.setPhase(PhaseReview)
	s.logger.Info().Int("entries", s.assembler.Len()).Msg("Session complete")
	return final
}

// waitForDrain polls the dispatch counter until every segment completes
// or the timeout lapses. A wedged provider call must not hold the
// doctor's review hostage.
func (s *Session) waitForDrain(ctx context.Context) {
	deadline := time.After(s.cfg.DrainTimeout)
	poll := s.cfg.DrainPoll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}

	for !s.counter.Drained() {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			s.logger.Warn().
				Uint64("pending", s.counter.Pending()).
				Msg("Drain timeout, proceeding with partial transcript")
			return
		case <-time.After(poll):
		}
	}
}

// finalNote reuses the scheduler's draft when it already covers the
// full transcript, otherwise runs one synchronous synthesis.
func (s *Session) finalNote(ctx context.Context) *notes.Draft {
	length := s.assembler.Len()
	if length == 0 {
		return nil
	}

	if draft, covered := s.scheduler.Note(); draft != nil && covered >= length && !s.scheduler.Busy() {
		s.logger.Debug().Msg("Reusing live draft as final note")
		return draft
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordNoteStart()
	}
	draft, err := s.cfg.Synthesizer.SynthesizeNote(ctx, s.assembler.Format(), s.cfg.Profile, s.cfg.Language)
	if err != nil {
		s.logger.Error().Err(err).Msg("Final note synthesis failed")
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordNoteEnd(false)
		}
		// Fall back to whatever the scheduler last produced.
		stale, _ := s.scheduler.Note()
		return stale
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordNoteEnd(true)
	}
	if s.cfg.Callbacks.OnDraft != nil {
		s.cfg.Callbacks.OnDraft(draft)
	}
	return draft
}

// persistFinal saves the note and closes the session record. Both are
// fire-and-forget with their own timeout.
func (s *Session) persistFinal(final *notes.Draft) {
	duration := time.Since(s.startedAt)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if final != nil {
			if err := s.cfg.Persister.SaveNote(ctx, s.cfg.ID, final); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to persist final note")
			}
		}
		if err := s.cfg.Persister.CloseSession(ctx, s.cfg.ID, duration); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close session record")
		}
	}()
}

func (s *Session) setPhase(to Phase) {
	s.mu.Lock()
	next, err := transition(s.phase, to)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("Phase transition rejected")
		return
	}
	s.phase = next
	s.mu.Unlock()
	s.emitPhase(next)
}

func (s *Session) emitPhase(phase Phase) {
	if s.cfg.Callbacks.OnPhase != nil {
		s.cfg.Callbacks.OnPhase(phase)
	}
}

// DictationText returns the accumulated dictation transcript
func (s *Session) DictationText() string {
	if s.dict == nil {
		return ""
	}
	return s.dict.Text()
}
