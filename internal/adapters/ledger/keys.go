package ledger

import (
	"fmt"

	"github.com/okian/rally/internal/domain/model"
)

// Document key builders. Every core document lives under one of these
// prefixes so transactions touch exactly the documents they need and scans
// stay cheap.

// StandingPrefix groups per-player leaderboard counter documents.
const StandingPrefix = "standing/"

// MatchRootPrefix groups every match document regardless of scope.
const MatchRootPrefix = "match/"

// MatchDoc is the authoritative match document.
func MatchDoc(k model.MatchKey) string {
	return fmt.Sprintf("match/%s/%d", k.Scope, k.Index)
}

// MatchPrefix groups every match in a scope.
func MatchPrefix(scope string) string {
	return fmt.Sprintf("match/%s/", scope)
}

// EventDoc is the persisted score event record, keyed by scope and event id.
func EventDoc(scope, eventID string) string {
	return fmt.Sprintf("event/%s/%s", scope, eventID)
}

// MarkerDoc is the application marker for one event against one match.
func MarkerDoc(k model.MatchKey, eventID string) string {
	return fmt.Sprintf("marker/%s/%d/%s", k.Scope, k.Index, eventID)
}

// DedupeDoc is the per-action debounce record.
func DedupeDoc(a model.ActionKey) string {
	return fmt.Sprintf("dedupe/%s/%d/%s/%+d", a.Scope, a.Index, a.Side, a.Sign)
}

// StandingDoc is a player's leaderboard counters document.
func StandingDoc(playerID string) string {
	return StandingPrefix + playerID
}

// SettlementDoc gates one settlement direction for one match.
func SettlementDoc(k model.MatchKey, direction model.SettlementDirection) string {
	return fmt.Sprintf("settlement/%s/%d/%s", k.Scope, k.Index, direction)
}
