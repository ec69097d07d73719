// Package recognition provides the streaming speech recognizer behind
// the dictation channel. Each Listen call opens one provider session
// that lives until the provider ends it; reconnection policy belongs to
// the caller, not here.
package recognition

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/dictation"
	"github.com/aivanahealth/scribe-gateway/internal/observability"
	"github.com/aivanahealth/scribe-gateway/internal/resilience"
)

// LanguageAuto lets the provider pick the language
const LanguageAuto = "Auto-detect"

// Config holds Deepgram connection settings
type Config struct {
	APIKey          string
	Model           string
	DefaultLanguage string
	SampleRate      int
	BreakerMaxFails int
	BreakerReset    time.Duration
}

// Deepgram implements dictation.Recognizer over Deepgram's streaming
// WebSocket API
type Deepgram struct {
	cfg     Config
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewDeepgram creates a recognizer
func NewDeepgram(cfg Config, logger zerolog.Logger) *Deepgram {
	if cfg.BreakerMaxFails <= 0 {
		cfg.BreakerMaxFails = 5
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = 30 * time.Second
	}
	return &Deepgram{
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("deepgram", cfg.BreakerMaxFails, cfg.BreakerReset),
		logger:  logger.With().Str("component", "deepgram").Logger(),
	}
}

// Listen opens one streaming session. The session's Results channel
// closes when Deepgram ends the stream or errors; the dictation channel
// decides whether to reopen.
func (d *Deepgram) Listen(ctx context.Context, language string) (dictation.LiveSession, error) {
	lang := d.resolveLanguage(language)

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.Model,
		Language:       lang,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     d.cfg.SampleRate,
	}

	session := &liveSession{
		results: make(chan dictation.Result, 100),
		logger:  d.logger,
	}

	callback := &callbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		session:                session,
		breaker:                d.breaker,
	}

	err := d.breaker.Call(func() error {
		client, err := listenClient.NewWSUsingCallback(ctx, d.cfg.APIKey, nil, tOptions, callback)
		if err != nil {
			return fmt.Errorf("failed to create Deepgram client: %w", err)
		}
		session.client = client
		return nil
	})
	observability.UpdateCircuitBreakerState("deepgram", int(d.breaker.State()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("deepgram")
		return nil, err
	}

	d.logger.Debug().Str("model", d.cfg.Model).Str("language", lang).Msg("Deepgram session opened")
	return session, nil
}

// Healthy reports whether the circuit to Deepgram is closed
func (d *Deepgram) Healthy(ctx context.Context) (bool, error) {
	if d.breaker.State() == resilience.StateOpen {
		return false, fmt.Errorf("deepgram circuit open")
	}
	return true, nil
}

func (d *Deepgram) resolveLanguage(language string) string {
	if language == "" || language == LanguageAuto {
		return d.cfg.DefaultLanguage
	}
	// BCP-47 tags pass through; spoken names fall back to the default.
	if strings.Contains(language, "-") || len(language) == 2 {
		return language
	}
	return d.cfg.DefaultLanguage
}

// liveSession is one Deepgram WebSocket connection
type liveSession struct {
	client  *listenClient.WSCallback
	results chan dictation.Result
	logger  zerolog.Logger

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *liveSession) SendAudio(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("deepgram session closed")
	}
	s.mu.Unlock()

	if _, err := s.client.Write(data); err != nil {
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	return nil
}

func (s *liveSession) Results() <-chan dictation.Result {
	return s.results
}

func (s *liveSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *liveSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.client.Finish()
	close(s.results)
	return nil
}

// end marks the session dead from the provider side
func (s *liveSession) end(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	s.mu.Unlock()
	close(s.results)
}

func (s *liveSession) push(result dictation.Result) {
	// Sent under the lock so a concurrent Close cannot close the
	// channel mid-send. The send never blocks.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.results <- result:
	default:
		s.logger.Warn().Msg("Dictation result channel full, dropping update")
	}
}

// callbackHandler adapts the SDK's callback interface to the session.
// The embedded default handler covers the message types we ignore.
type callbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	session *liveSession
	breaker *resilience.CircuitBreaker
}

func (h *callbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return nil
	}
	text := msg.Channel.Alternatives[0].Transcript
	if text == "" {
		return nil
	}
	h.session.push(dictation.Result{Text: text, Final: msg.IsFinal})
	return nil
}

func (h *callbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	err := fmt.Errorf("deepgram error: %s: %s", errorResponse.ErrCode, errorResponse.Description)
	h.breaker.Record(false)
	observability.UpdateCircuitBreakerState("deepgram", int(h.breaker.State()))
	observability.IncrementCircuitBreakerFailures("deepgram")

	if isAuthError(errorResponse) {
		err = fmt.Errorf("%w: %s", resilience.ErrPermissionDenied, errorResponse.Description)
	}
	h.session.end(err)
	return nil
}

func (h *callbackHandler) Close(cr *msginterfaces.CloseResponse) error {
	h.breaker.Record(true)
	h.session.end(nil)
	return nil
}

func isAuthError(resp *msginterfaces.ErrorResponse) bool {
	s := strings.ToLower(resp.ErrCode + " " + resp.Description)
	return strings.Contains(s, "auth") || strings.Contains(s, "invalid api key") || strings.Contains(s, "forbidden")
}
