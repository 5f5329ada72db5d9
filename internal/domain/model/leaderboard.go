package model

// Leaderboard counter fields. Entries are mutated only via signed increments
// on these fields so that settlements from unrelated matches commute.
const (
	StatPlayed        = "played"
	StatWon           = "won"
	StatLost          = "lost"
	StatPointsFor     = "points_for"
	StatPointsAgainst = "points_against"
	StatPointDiff     = "point_diff"
)

// StatFields lists every leaderboard counter field.
func StatFields() []string {
	return []string{StatPlayed, StatWon, StatLost, StatPointsFor, StatPointsAgainst, StatPointDiff}
}

// LeaderboardEntry is the read-side view of one player's aggregated totals.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	PlayerID      string `json:"player_id"`
	Played        int64  `json:"played"`
	Won           int64  `json:"won"`
	Lost          int64  `json:"lost"`
	PointsFor     int64  `json:"points_for"`
	PointsAgainst int64  `json:"points_against"`
	PointDiff     int64  `json:"point_diff"`
}

// EntryFromCounters builds a leaderboard entry from raw counter fields.
func EntryFromCounters(playerID string, counters map[string]int64) LeaderboardEntry {
	return LeaderboardEntry{
		PlayerID:      playerID,
		Played:        counters[StatPlayed],
		Won:           counters[StatWon],
		Lost:          counters[StatLost],
		PointsFor:     counters[StatPointsFor],
		PointsAgainst: counters[StatPointsAgainst],
		PointDiff:     counters[StatPointDiff],
	}
}

// SettlementDirection distinguishes folding a result in from reversing it.
type SettlementDirection string

// Settlement directions.
const (
	SettleApply   SettlementDirection = "apply"
	SettleReverse SettlementDirection = "reverse"
)

// SettlementMarker gates whether a match's outcome has already been folded
// into the leaderboard. Created when applying, deleted when reversing so a
// later re-completion can apply again.
type SettlementMarker struct {
	Match     MatchKey `json:"match"`
	Direction string   `json:"direction"`
	Version   int64    `json:"version"`
}

// StatDelta is one player's signed contribution from a settled match.
type StatDelta struct {
	PlayerID string
	Fields   map[string]int64
}

// Negated returns the delta with every field sign-flipped.
func (d StatDelta) Negated() StatDelta {
	out := StatDelta{PlayerID: d.PlayerID, Fields: make(map[string]int64, len(d.Fields))}
	for f, v := range d.Fields {
		out.Fields[f] = -v
	}
	return out
}
