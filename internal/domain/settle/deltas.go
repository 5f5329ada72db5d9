package settle

import "github.com/okian/rally/internal/domain/model"

// Deltas computes each player's signed statistical contribution from a
// scored match snapshot. Pure; the caller picks which snapshot applies.
func Deltas(m model.Match) []model.StatDelta {
	aWon := m.ScoreA > m.ScoreB
	out := make([]model.StatDelta, 0, len(m.SideA.Players)+len(m.SideB.Players))
	out = append(out, sideDeltas(m.SideA, m.ScoreA, m.ScoreB, aWon)...)
	out = append(out, sideDeltas(m.SideB, m.ScoreB, m.ScoreA, !aWon)...)
	return out
}

func sideDeltas(p model.Participant, scored, conceded int, won bool) []model.StatDelta {
	deltas := make([]model.StatDelta, 0, len(p.Players))
	for _, player := range p.Players {
		fields := map[string]int64{
			model.StatPlayed:        1,
			model.StatPointsFor:     int64(scored),
			model.StatPointsAgainst: int64(conceded),
			model.StatPointDiff:     int64(scored - conceded),
		}
		if won {
			fields[model.StatWon] = 1
		} else {
			fields[model.StatLost] = 1
		}
		deltas = append(deltas, model.StatDelta{PlayerID: player, Fields: fields})
	}
	return deltas
}
