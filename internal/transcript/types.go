package transcript

import "time"

// Speaker identifies who produced a transcript line
type Speaker string

const (
	SpeakerDoctor  Speaker = "Doctor"
	SpeakerPatient Speaker = "Patient"
	SpeakerAI      Speaker = "AI"
)

// SpeakerTurn is one diarized line as returned by the transcriber
type SpeakerTurn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Entry is one line of the assembled session transcript
type Entry struct {
	ID           string    `json:"id"`
	Speaker      Speaker   `json:"speaker"`
	Text         string    `json:"text"`
	SegmentIndex uint64    `json:"segment_index"`
	Timestamp    time.Time `json:"timestamp"`
}
