package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/swiss/internal/simulate"
)

// Default configuration constants.
const (
	defaultPlayers       = 32
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultDuplicateRate = 0.1
	defaultDropRate      = 0.1
	defaultDrawOfferRate = 0.05
	defaultTimeout       = 30 * time.Second
	defaultPollInterval  = 20 * time.Millisecond
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		name       = flag.String("name", "Simulated Swiss", "Tournament name")
		players    = flag.Int("players", defaultPlayers, "Number of players to register")
		rounds     = flag.Int("rounds", 0, "Planned rounds (0 = recommended)")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Seed for results and drops")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent report workers")
		duplicates = flag.Float64("duplicates", defaultDuplicateRate, "Share of reports submitted twice")
		drops      = flag.Float64("drops", defaultDropRate, "Chance a player drops after each round")
		drawOffers = flag.Float64("draw-offers", defaultDrawOfferRate, "Chance a table asks for an intentional draw")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write final standings to this JSON file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:       *baseURL,
		Name:          *name,
		Players:       *players,
		Rounds:        *rounds,
		Seed:          *seed,
		Workers:       max(*workers, 1),
		DuplicateRate: *duplicates,
		DropRate:      *drops,
		DrawOfferRate: *drawOffers,
		Timeout:       *timeout,
		PollInterval:  defaultPollInterval,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}
