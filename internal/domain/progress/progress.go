// Package progress decides whether a Swiss event is finished, whether the
// next round may start, and who can still win.
package progress

import (
	"math"
	"math/bits"

	"github.com/okian/swiss/internal/domain/model"
)

// pointsPerWin is the most a player can gain in one round.
const pointsPerWin = 3

// Completion reasons reported by Evaluate.
const (
	ReasonRoundsCompleted       = "rounds_completed"
	ReasonSinglePlayerRemaining = "single_player_remaining"
	ReasonUndefeatedChampion    = "undefeated_champion"
)

// Input describes the event at the moment of evaluation.
type Input struct {
	PlayerCount int
	// CurrentRound is the number of the latest paired round (0 before round 1).
	CurrentRound int
	// TotalRoundsPlanned overrides the recommended round count when > 0.
	TotalRoundsPlanned int
	Standings          []model.PlayerStanding
	// AllMatchesReported is true when the current round has no
	// outstanding results.
	AllMatchesReported bool
}

// State is the evaluator's verdict.
type State struct {
	IsComplete        bool   `json:"is_complete"`
	CanStartNextRound bool   `json:"can_start_next_round"`
	RecommendedRounds int    `json:"recommended_rounds"`
	TargetRounds      int    `json:"target_rounds"`
	RoundsRemaining   int    `json:"rounds_remaining"`
	PlayersRemaining  int    `json:"players_remaining"`
	Reason            string `json:"reason,omitempty"`
}

// RecommendedRounds is ceil(log2(n)) for n > 2, 1 for two players and 0
// otherwise.
func RecommendedRounds(n int) int {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		return bits.Len(uint(n - 1))
	}
}

// Evaluate applies the completion rules to in.
func Evaluate(in Input) State {
	recommended := RecommendedRounds(in.PlayerCount)
	target := recommended
	if in.TotalRoundsPlanned > 0 {
		target = in.TotalRoundsPlanned
	}

	remaining := 0
	undefeated := 0
	for _, s := range in.Standings {
		if s.IsDropped {
			continue
		}
		remaining++
		if s.MatchLosses == 0 {
			undefeated++
		}
	}

	st := State{
		RecommendedRounds: recommended,
		TargetRounds:      target,
		RoundsRemaining:   max(target-in.CurrentRound, 0),
		PlayersRemaining:  remaining,
	}

	switch {
	case in.CurrentRound >= target && in.AllMatchesReported:
		st.IsComplete = true
		st.Reason = ReasonRoundsCompleted
	case remaining <= 1:
		st.IsComplete = true
		st.Reason = ReasonSinglePlayerRemaining
	case in.CurrentRound >= recommended && in.AllMatchesReported && undefeated == 1:
		// Always judged against the recommended count, even when the
		// organiser planned more rounds.
		st.IsComplete = true
		st.Reason = ReasonUndefeatedChampion
	}

	st.CanStartNextRound = !st.IsComplete && in.AllMatchesReported && remaining > 1
	return st
}

// CanPlayerStillWin reports whether winning every remaining round would
// bring the player level with the leader.
func CanPlayerStillWin(playerPoints, leaderPoints, roundsRemaining int) bool {
	return playerPoints+roundsRemaining*pointsPerWin >= leaderPoints
}

// InContention returns the ids of non-dropped players who can still catch
// the leader, in standings order.
func InContention(rows []model.PlayerStanding, roundsRemaining int) []string {
	leader := math.MinInt
	for _, s := range rows {
		if !s.IsDropped && s.Points > leader {
			leader = s.Points
		}
	}
	var out []string
	for _, s := range rows {
		if s.IsDropped {
			continue
		}
		if CanPlayerStillWin(s.Points, leader, roundsRemaining) {
			out = append(out, s.UserID)
		}
	}
	return out
}

// CanOfferIntentionalDraw allows an intentional draw only in the final
// round and only between two players currently inside the top cut.
func CanOfferIntentionalDraw(currentRound, targetRounds, rankA, rankB, topCut int) bool {
	if targetRounds <= 0 || currentRound != targetRounds {
		return false
	}
	inCut := func(rank int) bool { return rank >= 1 && rank <= topCut }
	return inCut(rankA) && inCut(rankB)
}
