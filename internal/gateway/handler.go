// Package gateway is the WebSocket transport for recording sessions.
// The client streams PCM audio and control events; the server pushes
// transcript entries, live captions, note drafts and phase changes.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/config"
	"github.com/aivanahealth/scribe-gateway/internal/dictation"
	"github.com/aivanahealth/scribe-gateway/internal/notes"
	"github.com/aivanahealth/scribe-gateway/internal/observability"
	"github.com/aivanahealth/scribe-gateway/internal/resilience"
	"github.com/aivanahealth/scribe-gateway/internal/segmenter"
	"github.com/aivanahealth/scribe-gateway/internal/session"
	"github.com/aivanahealth/scribe-gateway/internal/transcript"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong to the reverse proxy in this deployment.
		return true
	},
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
}

// clientMessage is anything the client sends
type clientMessage struct {
	Type     string               `json:"type"` // "start", "media", "stop"
	Language string               `json:"language,omitempty"`
	Doctor   *notes.DoctorProfile `json:"doctor,omitempty"`
	Payload  string               `json:"payload,omitempty"` // base64 PCM-16
}

// serverMessage is anything the server pushes
type serverMessage struct {
	Type      string             `json:"type"` // "phase", "entries", "caption", "note", "error"
	SessionID string             `json:"session_id,omitempty"`
	Phase     string             `json:"phase,omitempty"`
	Entries   []transcript.Entry `json:"entries,omitempty"`
	Text      string             `json:"text,omitempty"`
	Final     bool               `json:"final,omitempty"`
	Note      *notes.Draft       `json:"note,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// Deps are the collaborators a stream handler hands to each session
type Deps struct {
	Config      *config.Config
	Transcriber transcript.Transcriber
	Synthesizer notes.Synthesizer
	Recognizer  dictation.Recognizer
	Persister   session.Persister
	Logger      zerolog.Logger
}

// StreamHandler upgrades /sessions/stream connections and runs one
// session per connection.
func StreamHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			deps.Logger.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		c := &clientConn{
			conn:   conn,
			deps:   deps,
			logger: deps.Logger,
		}
		c.readLoop(r.Context())
	}
}

// clientConn is one WebSocket connection and its session
type clientConn struct {
	conn   *websocket.Conn
	deps   Deps
	logger zerolog.Logger

	writeMu sync.Mutex
	sess    *session.Session
	sessID  string
}

func (c *clientConn) readLoop(ctx context.Context) {
	defer c.teardown()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}

		switch msg.Type {
		case "start":
			c.handleStart(ctx, msg)
		case "media":
			c.handleMedia(msg)
		case "stop":
			c.handleStop(ctx)
		default:
			c.sendError("unknown message type: " + msg.Type)
		}
	}
}

func (c *clientConn) handleStart(ctx context.Context, msg clientMessage) {
	if c.sess != nil {
		c.sendError("session already started")
		return
	}

	cfg := c.deps.Config
	c.sessID = uuid.New().String()
	c.logger = observability.WithSession(c.sessID)

	profile := notes.DoctorProfile{}
	if msg.Doctor != nil {
		profile = *msg.Doctor
	}

	metrics := observability.NewSessionMetrics(c.sessID)

	c.sess = session.New(session.Config{
		ID:          c.sessID,
		Language:    msg.Language,
		Profile:     profile,
		Transcriber: c.deps.Transcriber,
		Synthesizer: c.deps.Synthesizer,
		Recognizer:  c.deps.Recognizer,
		Persister:   c.deps.Persister,
		Segmenter: segmenter.Config{
			SampleRate:         cfg.SampleRate,
			SegmentDuration:    cfg.SegmentDuration(),
			MinSegmentDuration: cfg.MinSegmentDuration(),
			VADThreshold:       cfg.VADThreshold,
			VADHangover:        cfg.VADHangover(),
		},
		FrameSize:       cfg.FrameSize,
		UpdateThreshold: cfg.NoteUpdateThreshold,
		Debounce:        cfg.NoteDebounce(),
		DrainTimeout:    cfg.DrainTimeout(),
		DrainPoll:       cfg.DrainPoll(),
		Dictation: dictation.Config{
			Backoff: resilience.BackoffConfig{
				Base:       cfg.DictationBackoff(),
				Max:        cfg.DictationMaxBackoff(),
				Multiplier: 2.0,
			},
		},
		Callbacks: session.Callbacks{
			OnPhase: func(phase session.Phase) {
				c.send(serverMessage{Type: "phase", SessionID: c.sessID, Phase: string(phase)})
			},
			OnEntries: func(entries []transcript.Entry) {
				c.send(serverMessage{Type: "entries", SessionID: c.sessID, Entries: entries})
			},
			OnDraft: func(draft *notes.Draft) {
				c.send(serverMessage{Type: "note", SessionID: c.sessID, Note: draft})
			},
			OnDictation: func(text string, final bool) {
				c.send(serverMessage{Type: "caption", SessionID: c.sessID, Text: text, Final: final})
			},
		},
		Metrics: metrics,
		Logger:  c.logger,
	})

	c.sess.Start(ctx)
	c.logger.Info().Str("language", msg.Language).Msg("Stream session started")
}

func (c *clientConn) handleMedia(msg clientMessage) {
	if c.sess == nil {
		c.sendError("no active session")
		return
	}
	data, err := base64.StdEncoding.DecodeString(msg.Payload)
	if err != nil {
		c.sendError("malformed audio payload")
		return
	}
	c.sess.PushAudio(data)
}

func (c *clientConn) handleStop(ctx context.Context) {
	if c.sess == nil {
		c.sendError("no active session")
		return
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	final := c.sess.Stop(stopCtx)
	if final != nil {
		c.send(serverMessage{Type: "note", SessionID: c.sessID, Note: final})
	}
}

// teardown stops a session whose connection dropped mid-recording
func (c *clientConn) teardown() {
	if c.sess == nil || c.sess.Phase() != session.PhaseActive {
		return
	}
	c.logger.Warn().Msg("Connection dropped with active session, stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c.sess.Stop(ctx)
}

func (c *clientConn) send(msg serverMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("WebSocket write failed")
	}
}

func (c *clientConn) sendError(message string) {
	c.send(serverMessage{Type: "error", SessionID: c.sessID, Message: message})
}
