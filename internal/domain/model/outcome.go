package model

// Outcome is the terminal result of applying one score event. Every event
// ends in exactly one outcome; nothing is silently dropped.
type Outcome string

// Outcome taxonomy surfaced back to callers.
const (
	// OutcomeApplied means the event changed match state.
	OutcomeApplied Outcome = "applied"

	// OutcomeSuppressedDuplicate means a near-simultaneous duplicate from a
	// different writer was debounced. Not an error.
	OutcomeSuppressedDuplicate Outcome = "suppressed_duplicate"

	// OutcomeStaleConflict means a correction was computed against an
	// outdated version. Non-retryable as-is; the caller must re-read state
	// and issue a new event.
	OutcomeStaleConflict Outcome = "stale_conflict"

	// OutcomeMatchNotFound means the target match was deleted or never
	// existed. Non-retryable.
	OutcomeMatchNotFound Outcome = "error_match_not_found"
)

// Terminal reports whether o is a recognized terminal outcome.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeApplied, OutcomeSuppressedDuplicate, OutcomeStaleConflict, OutcomeMatchNotFound:
		return true
	default:
		return false
	}
}

// Changed reports whether the outcome mutated match state.
func (o Outcome) Changed() bool {
	return o == OutcomeApplied
}

// Result is what the applier hands back for one event: the recorded outcome
// and the authoritative score/version after the decision. Replays of an
// already-processed event return the originally recorded result unchanged.
type Result struct {
	EventID string  `json:"event_id"`
	Outcome Outcome `json:"outcome"`
	Score   int     `json:"score"`
	Version int64   `json:"version"`
	Replay  bool    `json:"replay,omitempty"`
}
