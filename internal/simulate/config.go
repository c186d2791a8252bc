package simulate

import (
	"time"

	"github.com/okian/swiss/internal/domain/model"
)

// Config holds configuration for a simulated tournament.
type Config struct {
	BaseURL       string        // Base URL of the service
	Name          string        // Tournament name
	Players       int           // Number of players to register
	Rounds        int           // Planned rounds (0 = recommended)
	Seed          int64         // Seed for results and drops
	Workers       int           // Number of concurrent report workers
	DuplicateRate float64       // Share of reports sent twice
	DropRate      float64       // Chance a player drops after each round
	DrawOfferRate float64       // Chance a table asks for an intentional draw
	Timeout       time.Duration // HTTP request timeout
	PollInterval  time.Duration // Delay between state polls
	OutputFile    string        // Final standings as JSON (optional)
	Verbose       bool          // Log every round
}

// Report is the body of POST /tournaments/{id}/reports.
type Report struct {
	ReportID    string           `json:"report_id"`
	Round       int              `json:"round"`
	TableNumber int              `json:"table_number"`
	Result      model.ResultCode `json:"result"`
	GamesWonA   int              `json:"games_won_a"`
	GamesWonB   int              `json:"games_won_b"`
}

// AckResponse represents the response from report submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	TournamentID      string
	PlayersRegistered int
	PlayersDropped    int
	RoundsPlayed      int
	Byes              int
	Rematches         int
	IntentionalDraws  int
	ReportsSubmitted  int
	ReportsAccepted   int
	ReportsDuplicate  int
	ReportsFailed     int
	CompletionReason  string
	Winner            string
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
