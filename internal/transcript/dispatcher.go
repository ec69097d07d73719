package transcript

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/observability"
	"github.com/aivanahealth/scribe-gateway/internal/segmenter"
)

// contextLines is how many trailing entries prime the transcriber
const contextLines = 3

// Transcriber turns one audio segment into diarized speaker turns
type Transcriber interface {
	TranscribeSegment(ctx context.Context, audio []byte, mimeType, language, recentContext string) ([]SpeakerTurn, error)
}

// EntrySaver persists transcript entries
type EntrySaver interface {
	SaveEntry(ctx context.Context, sessionID string, entry Entry) error
}

// EntriesFunc receives newly appended entries, in spoken order
type EntriesFunc func(entries []Entry)

// DispatcherConfig wires a dispatcher's collaborators. Saver, Metrics
// and OnEntries may be nil.
type DispatcherConfig struct {
	SessionID   string
	Language    string
	Transcriber Transcriber
	Assembler   *Assembler
	Counter     *DispatchCounter
	Saver       EntrySaver
	Metrics     *observability.Metrics
	OnEntries   EntriesFunc
	Logger      zerolog.Logger
}

// Dispatcher runs segment transcriptions concurrently. Each segment is
// counted as dispatched before its goroutine starts and completed when
// the goroutine exits, whatever the outcome, so the drain counter can
// never wedge on a failure.
type Dispatcher struct {
	cfg    DispatcherConfig
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch hands one segment to the transcriber without blocking the
// caller. The audio loop keeps cutting while earlier segments are in
// flight.
func (d *Dispatcher) Dispatch(ctx context.Context, seg segmenter.Segment) {
	d.cfg.Counter.IncDispatched()
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RecordTranscriptionStart(seg.Index)
	}

	// Snapshot context before launching so it reflects the transcript
	// as of dispatch time.
	recentContext := d.cfg.Assembler.RecentContext(contextLines)

	go d.run(ctx, seg, recentContext)
}

func (d *Dispatcher) run(ctx context.Context, seg segmenter.Segment, recentContext string) {
	defer d.cfg.Counter.IncCompleted()

	turns, err := d.cfg.Transcriber.TranscribeSegment(ctx, seg.Bytes, seg.MimeType, d.cfg.Language, recentContext)
	if err != nil {
		d.logger.Error().Err(err).Uint64("segment_index", seg.Index).Msg("Segment transcription failed")
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.RecordTranscriptionEnd(seg.Index, false)
			d.cfg.Metrics.RecordError("transcription", "dispatcher")
		}
		return
	}

	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RecordTranscriptionEnd(seg.Index, true)
	}

	added := d.cfg.Assembler.Append(seg.Index, turns)
	if len(added) == 0 {
		return
	}
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RecordTranscriptEntries(len(added))
	}

	if d.cfg.OnEntries != nil {
		d.cfg.OnEntries(added)
	}

	// Persistence is fire-and-forget. A store outage must not stall
	// the live pipeline.
	if d.cfg.Saver != nil {
		for _, entry := range added {
			if err := d.cfg.Saver.SaveEntry(ctx, d.cfg.SessionID, entry); err != nil {
				d.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("Failed to persist transcript entry")
				if d.cfg.Metrics != nil {
					d.cfg.Metrics.RecordError("persistence", "dispatcher")
				}
			}
		}
	}
}
