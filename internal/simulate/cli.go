package simulate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/swiss/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initialises the global logger on stdout, and on logFile as
// well when one is given.
func SetupLogging(logFile string, verbose bool) error {
	level := "info"
	if verbose {
		level = "debug"
	}

	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.Init(logger.WithLevel(level), logger.WithOutput(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Swiss Tournament Simulator
==========================

Plays a complete Swiss tournament against a running service: registers
players, pairs every round, reports random results concurrently and checks
the final standings.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -name string
        Tournament name (default "Simulated Swiss")
  -players int
        Number of players to register (default 32)
  -rounds int
        Planned rounds, 0 for the recommended count (default 0)
  -seed int
        Seed for results and drops (default: current time)
  -workers int
        Number of concurrent report workers (default CPU cores * 2)
  -duplicates float
        Share of reports submitted twice (default 0.1)
  -drops float
        Chance a player drops after each round (default 0.1)
  -draw-offers float
        Chance a table asks for an intentional draw (default 0.05)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write final standings to this JSON file
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # 64 players, reproducible
  go run ./cmd/simulate -players 64 -seed 7

  # Five fixed rounds, standings saved
  go run ./cmd/simulate -rounds 5 -output standings.json
`)
}
