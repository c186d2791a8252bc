package simulate

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/okian/swiss/internal/domain/model"
)

// Cumulative outcome probabilities for an ordinary table.
const (
	playerAWinBelow  = 0.45
	playerBWinBelow  = 0.85
	drawBelow        = 0.95
	doubleLossBelow  = 0.98
	disqualifyBelow  = 1.0
	gamesToWinMatch  = 2
	gamesInDrawnPair = 1
)

// generator rolls match results. It is not safe for concurrent use.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed int64) *generator {
	return &generator{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // simulation, not security
}

// chance reports true with probability p.
func (g *generator) chance(p float64) bool {
	return p > 0 && g.rng.Float64() < p
}

// pick returns a random element of ids.
func (g *generator) pick(ids []string) string {
	return ids[g.rng.Intn(len(ids))]
}

// result rolls an ordinary result for one table.
func (g *generator) result(round int, p model.Pairing) Report {
	r := Report{
		ReportID:    uuid.NewString(),
		Round:       round,
		TableNumber: p.TableNumber,
	}
	loserGames := g.rng.Intn(gamesToWinMatch)

	switch roll := g.rng.Float64(); {
	case roll < playerAWinBelow:
		r.Result, r.GamesWonA, r.GamesWonB = model.PlayerAWin, gamesToWinMatch, loserGames
	case roll < playerBWinBelow:
		r.Result, r.GamesWonA, r.GamesWonB = model.PlayerBWin, loserGames, gamesToWinMatch
	case roll < drawBelow:
		r.Result, r.GamesWonA, r.GamesWonB = model.Draw, gamesInDrawnPair, gamesInDrawnPair
	case roll < doubleLossBelow:
		r.Result = model.DoubleLoss
	case roll < disqualifyBelow && loserGames == 0:
		r.Result, r.GamesWonB = model.PlayerADisqualified, gamesToWinMatch
	default:
		r.Result, r.GamesWonA = model.PlayerBDisqualified, gamesToWinMatch
	}
	return r
}

// intentionalDraw builds an agreed draw for one table.
func intentionalDraw(round int, p model.Pairing) Report {
	return Report{
		ReportID:    uuid.NewString(),
		Round:       round,
		TableNumber: p.TableNumber,
		Result:      model.IntentionalDraw,
	}
}
