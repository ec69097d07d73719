package session

import "fmt"

// Phase is a session's lifecycle stage
type Phase string

const (
	// PhaseActive is live capture: audio flowing, segments dispatching
	PhaseActive Phase = "active"
	// PhaseProcessing is teardown: draining in-flight work, final note
	PhaseProcessing Phase = "processing"
	// PhaseReview is terminal: transcript and note ready for the doctor
	PhaseReview Phase = "review"
)

// validTransitions is the only place transitions are defined
var validTransitions = map[Phase]Phase{
	PhaseActive:     PhaseProcessing,
	PhaseProcessing: PhaseReview,
}

// transition moves a session between phases. The state machine is
// strictly forward; anything else is a programming error surfaced to
// the caller.
func transition(from, to Phase) (Phase, error) {
	if validTransitions[from] != to {
		return from, fmt.Errorf("invalid phase transition %s -> %s", from, to)
	}
	return to, nil
}
