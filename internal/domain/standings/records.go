package standings

import "github.com/okian/swiss/internal/domain/model"

// BuildPlayerRecords derives pairing input from standings and the match
// history that produced them. Opponent lists follow match order and keep
// repeats. Byes and unreported matches add no opponent.
func BuildPlayerRecords(rows []model.PlayerStanding, matches []model.MatchRecord) []model.PlayerRecord {
	opponents := make(map[string][]string, len(rows))
	for _, r := range rows {
		opponents[r.UserID] = nil
	}
	for _, m := range matches {
		if m.IsBye() || m.Result == model.Unreported || !m.Result.Valid() || m.PlayerAID == m.PlayerBID {
			continue
		}
		if _, ok := opponents[m.PlayerAID]; !ok {
			continue
		}
		if _, ok := opponents[m.PlayerBID]; !ok {
			continue
		}
		opponents[m.PlayerAID] = append(opponents[m.PlayerAID], m.PlayerBID)
		opponents[m.PlayerBID] = append(opponents[m.PlayerBID], m.PlayerAID)
	}

	out := make([]model.PlayerRecord, len(rows))
	for i, r := range rows {
		out[i] = model.PlayerRecord{PlayerStanding: r, OpponentIDs: opponents[r.UserID]}
	}
	return out
}
