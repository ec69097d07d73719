package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the scribe gateway service.
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Gemini configuration (segment transcription and note synthesis)
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Deepgram configuration (continuous dictation channel)
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Persistence API (append-only transcript store, idempotent note save)
	StoreBaseURL   string `envconfig:"STORE_BASE_URL" default:"http://localhost:3000"`
	StoreTimeoutMs int    `envconfig:"STORE_TIMEOUT_MS" default:"5000"`

	// Audio capture configuration
	SampleRate int `envconfig:"SAMPLE_RATE" default:"16000"` // Hz, mono 16-bit PCM
	FrameSize  int `envconfig:"FRAME_SIZE" default:"320"`    // samples per frame (20ms at 16kHz)

	// Segmenter configuration
	SegmentDurationMs    int     `envconfig:"SEGMENT_DURATION_MS" default:"30000"`    // hard cap per segment
	MinSegmentDurationMs int     `envconfig:"MIN_SEGMENT_DURATION_MS" default:"3000"` // below this, pauses don't cut
	VADThreshold         float64 `envconfig:"VAD_THRESHOLD" default:"0.015"`          // normalized RMS
	VADHangoverMs        int     `envconfig:"VAD_HANGOVER_MS" default:"1500"`         // silence before a pause cut

	// Background note scheduler configuration
	NoteUpdateThreshold int `envconfig:"NOTE_UPDATE_THRESHOLD" default:"3"` // new entries forcing a regeneration
	NoteDebounceMs      int `envconfig:"NOTE_DEBOUNCE_MS" default:"2000"`   // quiet period before a debounced one

	// Dictation channel restart configuration
	DictationBackoffMs    int `envconfig:"DICTATION_BACKOFF_MS" default:"500"`
	DictationMaxBackoffMs int `envconfig:"DICTATION_MAX_BACKOFF_MS" default:"10000"`

	// Session drain configuration
	DrainTimeoutMs int `envconfig:"DRAIN_TIMEOUT_MS" default:"5000"`
	DrainPollMs    int `envconfig:"DRAIN_POLL_MS" default:"250"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from the environment, loading a .env file first
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables,
// skipping the .env lookup (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("FRAME_SIZE must be positive, got %d", c.FrameSize)
	}
	if c.MinSegmentDurationMs > c.SegmentDurationMs {
		return fmt.Errorf("MIN_SEGMENT_DURATION_MS (%d) must not exceed SEGMENT_DURATION_MS (%d)",
			c.MinSegmentDurationMs, c.SegmentDurationMs)
	}
	if c.VADThreshold <= 0 || c.VADThreshold >= 1 {
		return fmt.Errorf("VAD_THRESHOLD must be in (0, 1), got %f", c.VADThreshold)
	}
	return nil
}

// SegmentDuration returns the hard segment cap as a duration.
func (c *Config) SegmentDuration() time.Duration {
	return time.Duration(c.SegmentDurationMs) * time.Millisecond
}

// MinSegmentDuration returns the minimum pause-cut length as a duration.
func (c *Config) MinSegmentDuration() time.Duration {
	return time.Duration(c.MinSegmentDurationMs) * time.Millisecond
}

// VADHangover returns the silence hangover as a duration.
func (c *Config) VADHangover() time.Duration {
	return time.Duration(c.VADHangoverMs) * time.Millisecond
}

// NoteDebounce returns the scheduler debounce window as a duration.
func (c *Config) NoteDebounce() time.Duration {
	return time.Duration(c.NoteDebounceMs) * time.Millisecond
}

// DrainTimeout returns the bounded drain-poll timeout as a duration.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMs) * time.Millisecond
}

// DrainPoll returns the drain-poll interval as a duration.
func (c *Config) DrainPoll() time.Duration {
	return time.Duration(c.DrainPollMs) * time.Millisecond
}

// StoreTimeout returns the persistence request timeout as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

// DictationBackoff returns the dictation restart base delay as a duration.
func (c *Config) DictationBackoff() time.Duration {
	return time.Duration(c.DictationBackoffMs) * time.Millisecond
}

// DictationMaxBackoff returns the dictation restart delay ceiling.
func (c *Config) DictationMaxBackoff() time.Duration {
	return time.Duration(c.DictationMaxBackoffMs) * time.Millisecond
}
