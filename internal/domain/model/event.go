package model

import "time"

// ScoreEvent is an immutable client-generated score intent. It is created
// when an admin taps the score UI and consumed exactly once by the applier;
// re-delivery is detected through the application marker.
type ScoreEvent struct {
	// ClientEventID is globally unique and doubles as the idempotency key.
	ClientEventID string `json:"client_event_id"`

	Scope string `json:"scope"`
	Index int    `json:"index"`
	Side  Side   `json:"side"`

	// Delta is +1 for an increment or -1 for a correction. Corrections are
	// set-operations: NextScore carries the absolute score the client expects
	// to result, so a stale writer never re-derives arithmetic it cannot see.
	Delta     int `json:"delta"`
	NextScore int `json:"next_score"`

	// ExpectedVersion is the match version the client believed was current.
	// Checked only for negative deltas.
	ExpectedVersion int64 `json:"expected_version"`

	// SourceID is the stable writer identity, one per device.
	SourceID string `json:"source_id"`

	Timestamp time.Time `json:"timestamp"`
}

// Key returns the target match key.
func (e ScoreEvent) Key() MatchKey {
	return MatchKey{Scope: e.Scope, Index: e.Index}
}

// Sign returns the delta sign: +1 for increments, -1 for corrections.
func (e ScoreEvent) Sign() int {
	if e.Delta < 0 {
		return -1
	}
	return 1
}

// ActionKey identifies a debounce action: the same button on the same match.
// Two different writers hitting the same action key within the suppression
// window collapse to one effect.
type ActionKey struct {
	Scope string
	Index int
	Side  Side
	Sign  int
}

// Action returns the event's debounce action key.
func (e ScoreEvent) Action() ActionKey {
	return ActionKey{Scope: e.Scope, Index: e.Index, Side: e.Side, Sign: e.Sign()}
}

// ApplicationMarker records that an event has been applied or terminally
// rejected. Its presence is the exactly-once gate; markers are never deleted.
type ApplicationMarker struct {
	EventID    string    `json:"event_id"`
	Outcome    Outcome   `json:"outcome"`
	Score      int       `json:"score"`
	Version    int64     `json:"version"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DedupeRecord remembers the most recent writer for an action key. It exists
// only to decide whether a near-duplicate from a different writer should be
// suppressed.
type DedupeRecord struct {
	SourceID  string    `json:"source_id"`
	Timestamp time.Time `json:"timestamp"`
}

// EventRecord is the persisted copy of a score event with its recorded
// outcome reflected back for client-side auditability.
type EventRecord struct {
	Event      ScoreEvent `json:"event"`
	Outcome    Outcome    `json:"outcome"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// OutboxEntry is the client-local durable copy of a score event plus
// delivery metadata. It is removed only after a definitive server response.
type OutboxEntry struct {
	Event      ScoreEvent `json:"event"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	Attempts   int        `json:"attempts"`
}
