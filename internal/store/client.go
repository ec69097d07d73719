// Package store is the REST client for the persistence API. All callers
// treat it as fire-and-forget: a store outage degrades durability, never
// the live session.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aivanahealth/scribe-gateway/internal/notes"
	"github.com/aivanahealth/scribe-gateway/internal/transcript"
)

// Client talks to the persistence API
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a store client
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "store").Logger(),
	}
}

type transcriptPayload struct {
	SessionID    string `json:"session_id"`
	Speaker      string `json:"speaker"`
	Text         string `json:"text"`
	SegmentIndex uint64 `json:"segment_index"`
}

// SaveEntry appends one transcript entry
func (c *Client) SaveEntry(ctx context.Context, sessionID string, entry transcript.Entry) error {
	return c.post(ctx, "/api/transcripts", transcriptPayload{
		SessionID:    sessionID,
		Speaker:      string(entry.Speaker),
		Text:         entry.Text,
		SegmentIndex: entry.SegmentIndex,
	})
}

type notePayload struct {
	SessionID             string           `json:"session_id"`
	Subjective            string           `json:"subjective"`
	Objective             string           `json:"objective"`
	Assessment            string           `json:"assessment"`
	DifferentialDiagnosis string           `json:"differential_diagnosis"`
	LabResults            string           `json:"lab_results"`
	Advice                string           `json:"advice"`
	Medicines             []notes.Medicine `json:"medicines"`
}

// SaveNote persists the final clinical note for a session
func (c *Client) SaveNote(ctx context.Context, sessionID string, draft *notes.Draft) error {
	return c.post(ctx, "/api/prescriptions", notePayload{
		SessionID:             sessionID,
		Subjective:            draft.Subjective,
		Objective:             draft.Objective,
		Assessment:            draft.Assessment,
		DifferentialDiagnosis: draft.DifferentialDiagnosis,
		LabResults:            draft.LabResults,
		Advice:                draft.Advice,
		Medicines:             draft.Medicines,
	})
}

type sessionUpdate struct {
	EndedAt         string `json:"ended_at,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Status          string `json:"status,omitempty"`
}

// CloseSession marks a session finished with its duration
func (c *Client) CloseSession(ctx context.Context, sessionID string, duration time.Duration) error {
	return c.request(ctx, http.MethodPut, "/api/sessions/"+sessionID, sessionUpdate{
		EndedAt:         time.Now().UTC().Format(time.RFC3339),
		DurationSeconds: int(duration.Seconds()),
		Status:          "completed",
	})
}

// Healthy probes the persistence API
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sessions", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode < 500, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	return c.request(ctx, http.MethodPost, path, payload)
}

func (c *Client) request(ctx context.Context, method, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("store returned %d for %s %s", resp.StatusCode, method, path)
	}
	return nil
}
