// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Side identifies one of the two scoring sides of a match.
type Side string

// Valid sides.
const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// SlotState tracks a bracket slot's lifecycle.
// pending: participants not yet known; ready: participants assigned and
// scoring enabled; done: match finished.
type SlotState string

// Slot states.
const (
	SlotPending SlotState = "pending"
	SlotReady   SlotState = "ready"
	SlotDone    SlotState = "done"
)

// Participant describes one side of a match: a single player or a pair.
type Participant struct {
	Players []string `json:"players"`
}

// IsPlaceholder reports whether the participant slot has not been filled yet.
func (p Participant) IsPlaceholder() bool {
	return len(p.Players) == 0
}

// Label renders a human-readable participant name.
func (p Participant) Label() string {
	if p.IsPlaceholder() {
		return "(tbd)"
	}
	return strings.Join(p.Players, "/")
}

// MatchKey identifies a match: a scope (tournament round or group document)
// and an index within that scope.
type MatchKey struct {
	Scope string `json:"scope"`
	Index int    `json:"index"`
}

// String renders the key in scope/index form.
func (k MatchKey) String() string {
	return fmt.Sprintf("%s/%d", k.Scope, k.Index)
}

// Match is the authoritative record of one scheduled contest. It is owned by
// the ledger store and mutated only through the event applier and the
// done-state transition. Version increases on every accepted mutation.
type Match struct {
	Key     MatchKey    `json:"key"`
	SideA   Participant `json:"side_a"`
	SideB   Participant `json:"side_b"`
	ScoreA  int         `json:"score_a"`
	ScoreB  int         `json:"score_b"`
	Version int64       `json:"version"`
	Done    bool        `json:"done"`

	// Bracket role. Slot is empty for standalone matches; dependent matches
	// start pending with Feeders naming their prerequisite matches.
	Slot    SlotState  `json:"slot,omitempty"`
	Round   int        `json:"round,omitempty"`
	Feeders []MatchKey `json:"feeders,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Score returns the current score for the given side.
func (m Match) Score(side Side) int {
	if side == SideA {
		return m.ScoreA
	}
	return m.ScoreB
}

// SetScore sets the score for the given side.
func (m *Match) SetScore(side Side, score int) {
	if side == SideA {
		m.ScoreA = score
		return
	}
	m.ScoreB = score
}

// Winner returns the participant with the higher score. Ties are not a valid
// terminal state; ok is false when the scores are level.
func (m Match) Winner() (Participant, bool) {
	switch {
	case m.ScoreA > m.ScoreB:
		return m.SideA, true
	case m.ScoreB > m.ScoreA:
		return m.SideB, true
	default:
		return Participant{}, false
	}
}

// Transition carries before/after snapshots of a match whose done flag
// changed. It is the settlement trigger, consumed exactly once per transition.
type Transition struct {
	ID     string `json:"id"`
	Before Match  `json:"before"`
	After  Match  `json:"after"`
}

// Completed reports whether the transition marks the match done.
func (t Transition) Completed() bool {
	return !t.Before.Done && t.After.Done
}

// Reverted reports whether the transition un-marks a done match.
func (t Transition) Reverted() bool {
	return t.Before.Done && !t.After.Done
}
