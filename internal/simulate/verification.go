package simulate

import (
	"fmt"

	"github.com/okian/swiss/internal/domain/model"
)

// Points per match outcome, mirrored from the standings rules.
const (
	verifyPointsWin  = 3
	verifyPointsDraw = 1
)

// verifyStandings checks the final table against what the run produced.
func verifyStandings(rows []model.PlayerStanding, stats *Stats) error {
	if len(rows) != stats.PlayersRegistered {
		return fmt.Errorf("%w: %d rows for %d players", ErrInconsistent, len(rows), stats.PlayersRegistered)
	}

	dropped := 0
	for i, r := range rows {
		if r.Rank != i+1 {
			return fmt.Errorf("%w: row %d has rank %d", ErrInconsistent, i, r.Rank)
		}
		if want := r.MatchWins*verifyPointsWin + r.MatchDraws*verifyPointsDraw; r.Points != want {
			return fmt.Errorf("%w: %s has %d points, record gives %d", ErrInconsistent, r.UserID, r.Points, want)
		}
		if i > 0 && rows[i-1].Points < r.Points {
			return fmt.Errorf("%w: %s ranked above %s with fewer points", ErrInconsistent, rows[i-1].UserID, r.UserID)
		}
		if r.IsDropped {
			dropped++
		}
	}
	if dropped != stats.PlayersDropped {
		return fmt.Errorf("%w: %d dropped rows, %d drops sent", ErrInconsistent, dropped, stats.PlayersDropped)
	}
	return nil
}
