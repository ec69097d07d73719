package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("expected default Gemini model, got %s", cfg.GeminiModel)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.FrameSize != 320 {
		t.Errorf("expected default frame size 320, got %d", cfg.FrameSize)
	}
	if cfg.SegmentDurationMs != 30000 {
		t.Errorf("expected default segment duration 30000ms, got %d", cfg.SegmentDurationMs)
	}
	if cfg.MinSegmentDurationMs != 3000 {
		t.Errorf("expected default min segment duration 3000ms, got %d", cfg.MinSegmentDurationMs)
	}
	if cfg.VADThreshold != 0.015 {
		t.Errorf("expected default VAD threshold 0.015, got %f", cfg.VADThreshold)
	}
	if cfg.VADHangoverMs != 1500 {
		t.Errorf("expected default VAD hangover 1500ms, got %d", cfg.VADHangoverMs)
	}
	if cfg.NoteUpdateThreshold != 3 {
		t.Errorf("expected default note update threshold 3, got %d", cfg.NoteUpdateThreshold)
	}
	if cfg.NoteDebounceMs != 2000 {
		t.Errorf("expected default note debounce 2000ms, got %d", cfg.NoteDebounceMs)
	}
	if cfg.DictationMaxBackoffMs != 10000 {
		t.Errorf("expected default dictation max backoff 10000ms, got %d", cfg.DictationMaxBackoffMs)
	}
	if cfg.DrainTimeoutMs != 5000 {
		t.Errorf("expected default drain timeout 5000ms, got %d", cfg.DrainTimeoutMs)
	}
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DEEPGRAM_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("DEEPGRAM_API_KEY")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("expected error when required keys are missing")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SEGMENT_DURATION_MS", "45000")
	t.Setenv("MIN_SEGMENT_DURATION_MS", "5000")
	t.Setenv("VAD_THRESHOLD", "0.02")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.SegmentDurationMs != 45000 {
		t.Errorf("expected segment duration 45000ms, got %d", cfg.SegmentDurationMs)
	}
	if cfg.MinSegmentDurationMs != 5000 {
		t.Errorf("expected min segment duration 5000ms, got %d", cfg.MinSegmentDurationMs)
	}
	if cfg.VADThreshold != 0.02 {
		t.Errorf("expected VAD threshold 0.02, got %f", cfg.VADThreshold)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min exceeds cap", func(c *Config) { c.MinSegmentDurationMs = 60000 }},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero frame size", func(c *Config) { c.FrameSize = 0 }},
		{"threshold too high", func(c *Config) { c.VADThreshold = 1.5 }},
		{"threshold zero", func(c *Config) { c.VADThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				GeminiAPIKey:         "k",
				DeepgramAPIKey:       "k",
				SampleRate:           16000,
				FrameSize:            320,
				SegmentDurationMs:    30000,
				MinSegmentDurationMs: 3000,
				VADThreshold:         0.015,
			}
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
