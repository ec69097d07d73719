// Package gemini holds the two model collaborators: segment
// transcription with speaker diarization, and clinical note synthesis.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/aivanahealth/scribe-gateway/internal/notes"
	"github.com/aivanahealth/scribe-gateway/internal/transcript"
)

// LanguageAuto asks the model to detect the spoken language per turn
const LanguageAuto = "Auto-detect"

// Client wraps the Gemini API for both collaborators
type Client struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewClient creates a Gemini client
func NewClient(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "gemini").Logger(),
	}, nil
}

// segmentTurn is the wire shape of one diarized line
type segmentTurn struct {
	Speaker          string `json:"speaker"`
	Text             string `json:"text"`
	DetectedLanguage string `json:"detectedLanguage"`
}

// TranscribeSegment transcribes one audio segment into diarized speaker
// turns. recentContext carries the last few transcript lines so speaker
// labels stay consistent across segment boundaries.
func (c *Client) TranscribeSegment(ctx context.Context, audio []byte, mimeType, language, recentContext string) ([]transcript.SpeakerTurn, error) {
	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{
			genai.NewPartFromText(transcriptionInstruction(language, recentContext)),
		}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   transcriptionSchema(),
		Temperature:      &temperature,
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromBytes(audio, mimeType),
			genai.NewPartFromText("Transcribe and normalize this clinical segment."),
		},
	}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("segment transcription failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	var raw []segmentTurn
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("malformed transcription response: %w", err)
	}

	turns := make([]transcript.SpeakerTurn, 0, len(raw))
	for _, t := range raw {
		speaker := transcript.Speaker(t.Speaker)
		if speaker != transcript.SpeakerDoctor && speaker != transcript.SpeakerPatient {
			speaker = transcript.SpeakerPatient
		}
		turns = append(turns, transcript.SpeakerTurn{Speaker: speaker, Text: t.Text})
	}
	return turns, nil
}

// SynthesizeNote generates a structured clinical note from the full
// transcript in a single pass.
func (c *Client) SynthesizeNote(ctx context.Context, transcriptText string, profile notes.DoctorProfile, language string) (*notes.Draft, error) {
	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{
			genai.NewPartFromText(noteInstruction(profile, language)),
		}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   noteSchema(),
		Temperature:      &temperature,
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromText("Clinical Transcript:\n" + transcriptText),
		},
	}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("note synthesis failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	var draft notes.Draft
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return nil, fmt.Errorf("malformed note response: %w", err)
	}
	return &draft, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

func transcriptionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"speaker":          {Type: genai.TypeString, Enum: []string{"Doctor", "Patient"}},
				"text":             {Type: genai.TypeString},
				"detectedLanguage": {Type: genai.TypeString},
			},
			Required: []string{"speaker", "text", "detectedLanguage"},
		},
	}
}

func noteSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"subjective":            {Type: genai.TypeString},
			"objective":             {Type: genai.TypeString},
			"assessment":            {Type: genai.TypeString},
			"differentialDiagnosis": {Type: genai.TypeString},
			"labResults":            {Type: genai.TypeString},
			"advice":                {Type: genai.TypeString},
			"medicines": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":      {Type: genai.TypeString},
						"dosage":    {Type: genai.TypeString},
						"frequency": {Type: genai.TypeString},
						"route":     {Type: genai.TypeString},
					},
					Required: []string{"name", "dosage", "frequency", "route"},
				},
			},
		},
		Required: []string{"subjective", "objective", "assessment", "medicines", "advice"},
	}
}
