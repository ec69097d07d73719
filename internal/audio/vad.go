package audio

import "time"

// VADConfig holds configuration for voice activity detection
type VADConfig struct {
	EnergyThreshold float64       // normalized RMS threshold for speech
	Hangover        time.Duration // silence duration before speech is marked ended
	SampleRate      int           // Hz, used to convert frames to stream time
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 0.015,
		Hangover:        1500 * time.Millisecond,
		SampleRate:      16000,
	}
}

// VADDetector detects speech and pause boundaries in a PCM stream.
// Silence is measured in stream time derived from sample counts, not
// wall clock, so detection is deterministic for a given input.
type VADDetector struct {
	config     *VADConfig
	silence    time.Duration
	isSpeaking bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes an audio frame and updates the detector state.
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	rms := RMS(samples)
	frameHasSpeech := rms > v.config.EnergyThreshold
	frameDuration := time.Duration(len(samples)) * time.Second / time.Duration(v.config.SampleRate)

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silence = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silence += frameDuration
		if v.isSpeaking && v.silence >= v.config.Hangover {
			speechEnded = true
			v.isSpeaking = false
			v.silence = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset resets the detector state
func (v *VADDetector) Reset() {
	v.silence = 0
	v.isSpeaking = false
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// DetectSilence reports whether audio samples fall below the threshold
func DetectSilence(samples []int16, threshold float64) bool {
	return RMS(samples) < threshold
}
