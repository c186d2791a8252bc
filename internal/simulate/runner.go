package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	service "github.com/okian/swiss/internal/app"
	"github.com/okian/swiss/internal/domain/model"
	"github.com/okian/swiss/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

const (
	busyRetryDelay   = 50 * time.Millisecond
	busyMaxRetries   = 40
	workerQueueScale = 2
	percentScale     = 100
)

// Result is what a finished simulation hands back.
type Result struct {
	Stats     Stats
	State     service.TournamentState
	Standings []model.PlayerStanding
}

// Run plays one complete tournament against the service at cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	log := logger.Named("simulate")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting swiss tournament simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	t, err := client.CreateTournament(ctx, cfg.Name, cfg.Rounds)
	if err != nil {
		return nil, fmt.Errorf("create tournament: %w", err)
	}
	stats.TournamentID = t.ID

	active, err := registerPlayers(ctx, client, t.ID, cfg.Players)
	if err != nil {
		return nil, err
	}
	stats.PlayersRegistered = len(active)

	gen := newGenerator(cfg.Seed)
	var st service.TournamentState
	for {
		st, err = client.State(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch state: %w", err)
		}
		if st.IsComplete {
			break
		}

		round, err := client.NextRound(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("pair round %d: %w", st.CurrentRound+1, err)
		}
		stats.RoundsPlayed++
		stats.Rematches += round.Rematches
		if round.ByePlayerID != "" {
			stats.Byes++
		}
		if cfg.Verbose {
			log.Info(ctx, "round paired",
				logger.Int("round", round.Number),
				logger.Int("tables", len(round.Pairings)),
				logger.String("bye", round.ByePlayerID))
		}

		reports, err := playRound(ctx, cfg, client, gen, t.ID, round, stats)
		if err != nil {
			return nil, err
		}
		submitReports(ctx, cfg, client, t.ID, reports, stats)

		if err := waitForRound(ctx, cfg, client, t.ID); err != nil {
			return nil, err
		}

		if len(active) > 2 && gen.chance(cfg.DropRate) {
			id := gen.pick(active)
			if err := client.Drop(ctx, t.ID, id); err != nil {
				return nil, fmt.Errorf("drop %s: %w", id, err)
			}
			active = slices.DeleteFunc(active, func(p string) bool { return p == id })
			stats.PlayersDropped++
			log.Debug(ctx, "player dropped", logger.String("user_id", id), logger.Int("round", round.Number))
		}
	}

	rows, err := client.Standings(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch standings: %w", err)
	}
	if err := verifyStandings(rows, stats); err != nil {
		return nil, err
	}
	stats.CompletionReason = st.Reason
	if len(rows) > 0 {
		stats.Winner = rows[0].UserID
	}

	if cfg.OutputFile != "" {
		if err := saveStandings(cfg.OutputFile, rows); err != nil {
			log.Warn(ctx, "failed to save standings to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	return &Result{Stats: *stats, State: st, Standings: rows}, nil
}

func registerPlayers(ctx context.Context, client *Client, tournamentID string, n int) ([]string, error) {
	ids := make([]string, 0, n)
	for i := range n {
		e, err := client.Register(ctx, tournamentID, uuid.NewString(), fmt.Sprintf("Player %03d", i+1))
		if err != nil {
			return nil, fmt.Errorf("register player %d: %w", i+1, err)
		}
		ids = append(ids, e.UserID)
	}
	return ids, nil
}

// playRound decides every table's result. Byes are already recorded by the
// service and get no report.
func playRound(ctx context.Context, cfg *Config, client *Client, gen *generator, tournamentID string, round service.Round, stats *Stats) ([]Report, error) {
	reports := make([]Report, 0, len(round.Pairings))
	for _, p := range round.Pairings {
		if p.IsBye() {
			continue
		}
		if gen.chance(cfg.DrawOfferRate) {
			ok, err := client.CanOfferDraw(ctx, tournamentID, p.PlayerAID, p.PlayerBID)
			if err != nil {
				return nil, fmt.Errorf("draw offer: %w", err)
			}
			if ok {
				stats.IntentionalDraws++
				reports = append(reports, intentionalDraw(round.Number, p))
				continue
			}
		}
		reports = append(reports, gen.result(round.Number, p))
	}
	return reports, nil
}

// submitReports posts reports concurrently. A share of them is sent a
// second time to exercise duplicate suppression.
func submitReports(ctx context.Context, cfg *Config, client *Client, tournamentID string, reports []Report, stats *Stats) {
	var (
		submitted  int64
		accepted   int64
		duplicates int64
		failed     int64
	)

	sends := make([]Report, 0, len(reports))
	sends = append(sends, reports...)
	gen := newGenerator(cfg.Seed + int64(len(reports)))
	for _, r := range reports {
		if gen.chance(cfg.DuplicateRate) {
			sends = append(sends, r)
		}
	}

	work := make(chan Report, cfg.Workers*workerQueueScale)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range work {
				atomic.AddInt64(&submitted, 1)
				ack, err := submitWithRetry(ctx, client, tournamentID, r)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					logger.Get().Warn(ctx, "report failed", logger.String("report_id", r.ReportID), logger.Error(err))
				case ack.Duplicate:
					atomic.AddInt64(&duplicates, 1)
				default:
					atomic.AddInt64(&accepted, 1)
				}
			}
		}()
	}

	// Originals go first so every duplicate trails its report.
	go func() {
		defer close(work)
		for _, r := range sends {
			select {
			case <-ctx.Done():
				return
			case work <- r:
			}
		}
	}()
	wg.Wait()

	stats.ReportsSubmitted += int(submitted)
	stats.ReportsAccepted += int(accepted)
	stats.ReportsDuplicate += int(duplicates)
	stats.ReportsFailed += int(failed)
}

func submitWithRetry(ctx context.Context, client *Client, tournamentID string, r Report) (AckResponse, error) {
	for attempt := 0; ; attempt++ {
		ack, err := client.SubmitReport(ctx, tournamentID, r)
		if !errors.Is(err, ErrBusy) || attempt >= busyMaxRetries {
			return ack, err
		}
		select {
		case <-ctx.Done():
			return ack, ctx.Err()
		case <-time.After(busyRetryDelay):
		}
	}
}

// waitForRound polls until the current round has no unreported matches.
func waitForRound(ctx context.Context, cfg *Config, client *Client, tournamentID string) error {
	for {
		st, err := client.State(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("fetch state: %w", err)
		}
		if st.AllMatchesReported {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for round %d: %w", st.CurrentRound, ctx.Err())
		case <-time.After(cfg.PollInterval):
		}
	}
}

// saveStandings writes the final standings as indented JSON.
func saveStandings(filename string, rows []model.PlayerStanding) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal standings: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate float64
	if stats.ReportsSubmitted > 0 {
		acceptRate = float64(stats.ReportsAccepted) / float64(stats.ReportsSubmitted) * percentScale
	}

	log.Info(ctx, "final statistics",
		logger.String("tournamentID", stats.TournamentID),
		logger.Int("players", stats.PlayersRegistered),
		logger.Int("dropped", stats.PlayersDropped),
		logger.Int("rounds", stats.RoundsPlayed),
		logger.Int("byes", stats.Byes),
		logger.Int("rematches", stats.Rematches),
		logger.Int("intentionalDraws", stats.IntentionalDraws),
		logger.Int("reportsSubmitted", stats.ReportsSubmitted),
		logger.Int("reportsAccepted", stats.ReportsAccepted),
		logger.Int("reportsDuplicate", stats.ReportsDuplicate),
		logger.Int("reportsFailed", stats.ReportsFailed),
		logger.Float64("acceptRate", acceptRate),
		logger.String("reason", stats.CompletionReason),
		logger.String("winner", stats.Winner),
		logger.Duration("duration", stats.Duration))
}
