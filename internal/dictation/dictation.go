// Package dictation maintains a continuous dictation transcript over a
// streaming recognizer that can die at any moment. The channel owns the
// restart policy: provider sessions are disposable, intent to listen is
// durable.
package dictation

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/audio"
	"github.com/aivanahealth/scribe-gateway/internal/observability"
	"github.com/aivanahealth/scribe-gateway/internal/resilience"
)

// Result is one recognition update from a live session
type Result struct {
	Text  string
	Final bool
}

// LiveSession is one provider connection. Results closes when the
// session ends for any reason; Err then reports why.
type LiveSession interface {
	SendAudio(data []byte) error
	Results() <-chan Result
	Err() error
	Close() error
}

// Recognizer opens live recognition sessions
type Recognizer interface {
	Listen(ctx context.Context, language string) (LiveSession, error)
}

// UpdateFunc receives the full accumulated dictation text after each
// recognition update
type UpdateFunc func(text string, final bool)

// Config wires a dictation channel
type Config struct {
	Recognizer Recognizer
	Language   string
	Backoff    resilience.BackoffConfig
	BufferSize int // bytes of audio retained across provider restarts
	OnUpdate   UpdateFunc
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// Channel runs the dictation loop. Finalized text accumulates; interim
// text is overwritten in place by each partial update.
type Channel struct {
	cfg     Config
	pending *audio.RingBuffer
	logger  zerolog.Logger

	mu           sync.Mutex
	shouldListen bool
	live         LiveSession
	finals       []string
	interim      string
	restarts     int
	terminalErr  error
	cancel       context.CancelFunc
	done         chan struct{}
}

// New creates a dictation channel
func New(cfg Config) *Channel {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64 * 1024
	}
	return &Channel{
		cfg:     cfg,
		pending: audio.NewRingBuffer(cfg.BufferSize),
		logger:  cfg.Logger.With().Str("component", "dictation").Logger(),
	}
}

// Start begins listening. Returns immediately; the channel keeps itself
// alive until Stop or a terminal error.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.shouldListen {
		c.mu.Unlock()
		return
	}
	c.shouldListen = true
	c.terminalErr = nil
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(runCtx)
	}()
}

// Stop ends the dictation intent. The intent flag is cleared before the
// provider session is torn down so the closure that follows is not
// mistaken for a crash and restarted.
func (c *Channel) Stop() {
	c.mu.Lock()
	c.shouldListen = false
	cancel := c.cancel
	live := c.live
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if live != nil {
		live.Close()
	}
	if done != nil {
		<-done
	}
}

// SendAudio forwards audio to the live session, or buffers it while the
// provider is between sessions so a restart loses as little as possible.
func (c *Channel) SendAudio(data []byte) {
	c.mu.Lock()
	live := c.live
	c.mu.Unlock()

	if live == nil {
		c.pending.Write(data)
		return
	}
	if err := live.SendAudio(data); err != nil {
		c.pending.Write(data)
	}
}

// Text returns the accumulated dictation: all finalized utterances plus
// the current interim tail.
func (c *Channel) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textLocked()
}

func (c *Channel) textLocked() string {
	parts := make([]string, 0, len(c.finals)+1)
	parts = append(parts, c.finals...)
	if c.interim != "" {
		parts = append(parts, c.interim)
	}
	return strings.Join(parts, " ")
}

// Restarts returns how many times the provider session was reopened
func (c *Channel) Restarts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restarts
}

// Err returns the terminal error, if the channel gave up
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminalErr
}

func (c *Channel) run(ctx context.Context) {
	failures := 0

	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		if !c.shouldListen {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if attempt > 0 {
			c.mu.Lock()
			c.restarts++
			c.mu.Unlock()
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordDictationRestart()
			}
			if err := c.cfg.Backoff.Wait(ctx, failures); err != nil {
				return
			}
		}

		live, err := c.cfg.Recognizer.Listen(ctx, c.cfg.Language)
		if err != nil {
			if c.giveUpOn(err) {
				return
			}
			failures++
			c.logger.Warn().Err(err).Int("failures", failures).Msg("Recognizer start failed")
			continue
		}

		failures = 0
		c.mu.Lock()
		if !c.shouldListen {
			c.mu.Unlock()
			live.Close()
			return
		}
		c.live = live
		c.mu.Unlock()

		c.logger.Debug().Msg("Dictation session open")

		// Replay audio that arrived while the provider was down.
		if buffered := c.pending.Drain(); len(buffered) > 0 {
			if err := live.SendAudio(buffered); err != nil {
				c.pending.Write(buffered)
			}
		}

		c.consume(live)

		c.mu.Lock()
		c.live = nil
		c.mu.Unlock()

		if err := live.Err(); err != nil && c.giveUpOn(err) {
			return
		}
	}
}

// consume drains one session's results until it ends
func (c *Channel) consume(live LiveSession) {
	for result := range live.Results() {
		c.mu.Lock()
		if result.Final {
			text := strings.TrimSpace(result.Text)
			if text != "" {
				c.finals = append(c.finals, text)
			}
			c.interim = ""
		} else {
			c.interim = strings.TrimSpace(result.Text)
		}
		full := c.textLocked()
		c.mu.Unlock()

		if c.cfg.OnUpdate != nil {
			c.cfg.OnUpdate(full, result.Final)
		}
	}
}

// giveUpOn records a terminal error. Permission failures never resolve
// by retrying.
func (c *Channel) giveUpOn(err error) bool {
	if !resilience.IsPermissionDenied(err) {
		return false
	}
	c.mu.Lock()
	c.shouldListen = false
	c.terminalErr = err
	c.mu.Unlock()
	c.logger.Error().Err(err).Msg("Dictation stopped: permission denied")
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordError("permission_denied", "dictation")
	}
	return true
}
