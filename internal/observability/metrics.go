package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scribe_gateway_active_sessions",
		Help: "Number of active recording sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_sessions_total",
		Help: "Total number of sessions processed",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_gateway_session_duration_seconds",
		Help:    "Duration of recording sessions in seconds",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	// Segmenter metrics
	segmentsCut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_segments_cut_total",
		Help: "Total number of audio segments cut",
	}, []string{"reason"}) // reason: "pause", "cap", "flush"

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_transcription_requests_total",
		Help: "Total number of segment transcription requests",
	}, []string{"status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_gateway_transcription_latency_seconds",
		Help:    "Segment transcription latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	transcriptEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_transcript_entries_total",
		Help: "Total number of transcript entries appended",
	})

	// Note synthesis metrics
	noteRegenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_note_regenerations_total",
		Help: "Total number of note regenerations",
	}, []string{"status"})

	noteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scribe_gateway_note_latency_seconds",
		Help:    "Note synthesis latency in seconds",
		Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Dictation metrics
	dictationRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_dictation_restarts_total",
		Help: "Total number of dictation channel restarts",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scribe_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_gateway_audio_bytes_total",
		Help: "Total audio bytes received from clients",
	})
)

// Metrics tracks metrics for a single session
type Metrics struct {
	sessionID           string
	startTime           time.Time
	transcriptionStarts map[uint64]time.Time
	noteStartTime       time.Time
	mu                  sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID:           sessionID,
		startTime:           time.Now(),
		transcriptionStarts: make(map[uint64]time.Time),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordSegmentCut records a segment boundary
func (m *Metrics) RecordSegmentCut(reason string) {
	segmentsCut.WithLabelValues(reason).Inc()
}

// RecordTranscriptionStart records the dispatch of a segment transcription
func (m *Metrics) RecordTranscriptionStart(segmentIndex uint64) {
	m.mu.Lock()
	m.transcriptionStarts[segmentIndex] = time.Now()
	m.mu.Unlock()
}

// RecordTranscriptionEnd records completion of a segment transcription
func (m *Metrics) RecordTranscriptionEnd(segmentIndex uint64, success bool) {
	m.mu.Lock()
	if start, ok := m.transcriptionStarts[segmentIndex]; ok {
		transcriptionLatency.Observe(time.Since(start).Seconds())
		delete(m.transcriptionStarts, segmentIndex)
	}
	m.mu.Unlock()

	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(status).Inc()
}

// RecordTranscriptEntries records appended transcript entries
func (m *Metrics) RecordTranscriptEntries(count int) {
	transcriptEntries.Add(float64(count))
}

// RecordNoteStart records the start of a note regeneration
func (m *Metrics) RecordNoteStart() {
	m.mu.Lock()
	m.noteStartTime = time.Now()
	m.mu.Unlock()
}

// RecordNoteEnd records completion of a note regeneration
func (m *Metrics) RecordNoteEnd(success bool) {
	m.mu.Lock()
	if !m.noteStartTime.IsZero() {
		noteLatency.Observe(time.Since(m.noteStartTime).Seconds())
	}
	m.mu.Unlock()

	status := "success"
	if !success {
		status = "error"
	}
	noteRegenerations.WithLabelValues(status).Inc()
}

// RecordDictationRestart records a dictation channel restart
func (m *Metrics) RecordDictationRestart() {
	dictationRestarts.Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes received
func (m *Metrics) RecordAudioBytes(bytes int64) {
	audioBytesProcessed.Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
