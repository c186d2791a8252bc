// Package standings computes ranked tournament standings from match history.
//
// Standings are rebuilt from scratch on every call. Nothing is cached between
// calls, so the output always reflects exactly the matches supplied.
package standings

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/okian/swiss/internal/domain/model"
)

// Tolerance is the absolute epsilon used for every tiebreaker comparison.
const Tolerance = 0.0001

// Scoring constants.
const (
	pointsWin  = 3
	pointsDraw = 1
	omwFloor   = 1.0 / 3.0
)

// Input is a snapshot of one tournament's entries and reported matches.
type Input struct {
	// PlayerIDs lists every entrant; each produces exactly one standing.
	PlayerIDs []string
	// Names maps user id to display name. Missing names are left empty.
	Names map[string]string
	// Matches is the full match history in report order.
	Matches []model.MatchRecord
	// Dropped maps a dropped user id to the round they dropped after
	// (0 when unknown).
	Dropped map[string]int
}

// tally accumulates one player's raw results.
type tally struct {
	points     int
	wins       int
	losses     int
	draws      int
	gameWins   int
	gameLosses int
	bye        bool
	opponents  []string
}

func (t *tally) win() {
	t.points += pointsWin
	t.wins++
}

func (t *tally) loss() { t.losses++ }

func (t *tally) draw() {
	t.points += pointsDraw
	t.draws++
}

// matchWinRate counts a draw as half a win. Zero matches yields the floor.
func (t *tally) matchWinRate() float64 {
	played := t.wins + t.losses + t.draws
	if played == 0 {
		return omwFloor
	}
	return (float64(t.wins) + 0.5*float64(t.draws)) / float64(played)
}

func (t *tally) gameWinRate() float64 {
	games := t.gameWins + t.gameLosses
	if games == 0 {
		return 0
	}
	return float64(t.gameWins) / float64(games)
}

// Calculate folds the match history into ranked standings.
// Matches that reference unknown players are skipped.
func Calculate(in Input) []model.PlayerStanding {
	tallies := make(map[string]*tally, len(in.PlayerIDs))
	order := make([]string, 0, len(in.PlayerIDs))
	for _, id := range in.PlayerIDs {
		if _, dup := tallies[id]; dup {
			continue
		}
		tallies[id] = &tally{}
		order = append(order, id)
	}

	for _, m := range in.Matches {
		fold(tallies, m)
	}

	// GW% and OMW% depend only on tallies; OGW% and OOMW% then read the
	// per-player values computed here, never recursing further.
	gw := make(map[string]float64, len(tallies))
	omw := make(map[string]float64, len(tallies))
	for id, t := range tallies {
		gw[id] = t.gameWinRate()
		omw[id] = opponentMatchWin(tallies, t.opponents)
	}

	out := make([]model.PlayerStanding, 0, len(order))
	for _, id := range order {
		t := tallies[id]
		dropRound, dropped := in.Dropped[id]
		out = append(out, model.PlayerStanding{
			UserID:            id,
			Name:              in.Names[id],
			Points:            t.points,
			MatchWins:         t.wins,
			MatchLosses:       t.losses,
			MatchDraws:        t.draws,
			GameWins:          t.gameWins,
			GameLosses:        t.gameLosses,
			OMWPercent:        omw[id],
			GWPercent:         gw[id],
			OGWPercent:        meanOf(gw, t.opponents),
			OOMWPercent:       meanOf(omw, t.opponents),
			ReceivedBye:       t.bye,
			IsDropped:         dropped,
			DroppedAfterRound: dropRound,
		})
	}

	slices.SortStableFunc(out, Compare)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// fold applies a single match to the tallies.
func fold(tallies map[string]*tally, m model.MatchRecord) {
	a, ok := tallies[m.PlayerAID]
	if !ok {
		return
	}
	if m.IsBye() {
		a.win()
		a.bye = true
		return
	}
	b, ok := tallies[m.PlayerBID]
	if !ok || m.PlayerAID == m.PlayerBID {
		return
	}
	if m.Result == model.Unreported || !m.Result.Valid() {
		return
	}

	a.opponents = append(a.opponents, m.PlayerBID)
	b.opponents = append(b.opponents, m.PlayerAID)

	// Game counts are taken as reported, whatever the match outcome.
	a.gameWins += m.GamesWonA
	a.gameLosses += m.GamesWonB
	b.gameWins += m.GamesWonB
	b.gameLosses += m.GamesWonA

	switch m.Result {
	case model.PlayerAWin, model.PlayerBDisqualified:
		a.win()
		b.loss()
	case model.PlayerBWin, model.PlayerADisqualified:
		b.win()
		a.loss()
	case model.Draw, model.IntentionalDraw:
		a.draw()
		b.draw()
	case model.DoubleLoss:
		a.loss()
		b.loss()
	case model.Unreported:
	}
}

// opponentMatchWin averages each opponent's floored match-win rate.
// An opponent faced twice counts twice.
func opponentMatchWin(tallies map[string]*tally, opponents []string) float64 {
	if len(opponents) == 0 {
		return omwFloor
	}
	var sum float64
	for _, id := range opponents {
		sum += math.Max(tallies[id].matchWinRate(), omwFloor)
	}
	return sum / float64(len(opponents))
}

func meanOf(values map[string]float64, opponents []string) float64 {
	if len(opponents) == 0 {
		return 0
	}
	var sum float64
	for _, id := range opponents {
		sum += values[id]
	}
	return sum / float64(len(opponents))
}

// Compare orders standings best first: points, then OMW%, GW%, OGW% and
// OOMW% within Tolerance, then user id ascending.
func Compare(a, b model.PlayerStanding) int {
	if a.Points != b.Points {
		return cmp.Compare(b.Points, a.Points)
	}
	tiebreakers := [...][2]float64{
		{a.OMWPercent, b.OMWPercent},
		{a.GWPercent, b.GWPercent},
		{a.OGWPercent, b.OGWPercent},
		{a.OOMWPercent, b.OOMWPercent},
	}
	for _, tb := range tiebreakers {
		if c := CompareDesc(tb[0], tb[1]); c != 0 {
			return c
		}
	}
	return strings.Compare(a.UserID, b.UserID)
}

// CompareDesc orders two percentages descending, treating values closer
// than Tolerance as equal.
func CompareDesc(x, y float64) int {
	if math.Abs(x-y) < Tolerance {
		return 0
	}
	if x > y {
		return -1
	}
	return 1
}
