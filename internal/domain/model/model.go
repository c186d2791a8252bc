// Package model holds tournament records: tournaments, entrants, match results, pairings and standings rows.
package model

import "time"

// MatchRecord is one contested match or bye slot.
// An empty PlayerBID marks a bye for PlayerAID.
type MatchRecord struct {
	Round       int        `json:"round,omitempty"`
	TableNumber int        `json:"table_number,omitempty"`
	PlayerAID   string     `json:"player_a_id"`
	PlayerBID   string     `json:"player_b_id,omitempty"`
	Result      ResultCode `json:"result"`
	GamesWonA   int        `json:"games_won_a"`
	GamesWonB   int        `json:"games_won_b"`
}

// IsBye reports whether the record has no opponent.
func (m MatchRecord) IsBye() bool { return m.PlayerBID == "" }

// PlayerStanding is a computed row of the standings table.
type PlayerStanding struct {
	UserID            string  `json:"user_id"`
	Name              string  `json:"name"`
	Rank              int     `json:"rank"`
	Points            int     `json:"points"`
	MatchWins         int     `json:"match_wins"`
	MatchLosses       int     `json:"match_losses"`
	MatchDraws        int     `json:"match_draws"`
	GameWins          int     `json:"game_wins"`
	GameLosses        int     `json:"game_losses"`
	OMWPercent        float64 `json:"omw_percent"`
	GWPercent         float64 `json:"gw_percent"`
	OGWPercent        float64 `json:"ogw_percent"`
	OOMWPercent       float64 `json:"oomw_percent"`
	ReceivedBye       bool    `json:"received_bye"`
	IsDropped         bool    `json:"is_dropped"`
	DroppedAfterRound int     `json:"dropped_after_round,omitempty"` // 0 when not dropped or unknown
}

// PlayerRecord is the pairing engine's view of a player.
// OpponentIDs keeps every previous opponent in order, duplicates included.
type PlayerRecord struct {
	PlayerStanding
	OpponentIDs []string `json:"opponent_ids"`
}

// Pairing is one table of a round. An empty PlayerBID is a bye.
type Pairing struct {
	TableNumber int    `json:"table_number"`
	PlayerAID   string `json:"player_a_id"`
	PlayerBID   string `json:"player_b_id,omitempty"`
}

// IsBye reports whether the pairing has no opponent.
func (p Pairing) IsBye() bool { return p.PlayerBID == "" }

// Tournament is the persisted header of an event.
type Tournament struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TotalRounds    int       `json:"total_rounds,omitempty"` // 0 means use the recommended count
	AvoidRematches bool      `json:"avoid_rematches"`
	TopCut         int       `json:"top_cut"`
	CurrentRound   int       `json:"current_round"`
	CreatedAt      time.Time `json:"created_at"`
}

// Entrant is a registered player.
type Entrant struct {
	UserID            string `json:"user_id"`
	Name              string `json:"name"`
	Dropped           bool   `json:"dropped"`
	DroppedAfterRound int    `json:"dropped_after_round,omitempty"`
}

// ReportEvent is a match result submitted by a client.
// ReportID is the idempotency key.
type ReportEvent struct {
	ReportID     string     `json:"report_id"`
	TournamentID string     `json:"tournament_id"`
	Round        int        `json:"round"`
	TableNumber  int        `json:"table_number"`
	Result       ResultCode `json:"result"`
	GamesWonA    int        `json:"games_won_a"`
	GamesWonB    int        `json:"games_won_b"`
	ReportedAt   time.Time  `json:"reported_at"`
}
