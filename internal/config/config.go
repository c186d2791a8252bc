// Package config defines service configuration and its loader.
package config

import (
	"fmt"
	"runtime"
	"slices"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// CORSOrigins lists origins allowed to call the API from a browser.
	// Comma separated when set through the environment.
	CORSOrigins []string `koanf:"cors_origins"`

	// ReportQueueSize bounds the in-memory match report queue.
	ReportQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of report workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets how many report ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// Store selects the persistence backend: memory or sqlite.
	Store string `koanf:"store"`
	// SQLitePath is the database file used when Store is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// NATSURL enables the NATS publisher when set.
	NATSURL string `koanf:"nats_url"`
	// NATSEmbedded starts an in-process NATS server and publishes to it.
	NATSEmbedded bool `koanf:"nats_embedded"`
	// NATSSubjectPrefix prefixes every published subject.
	NATSSubjectPrefix string `koanf:"nats_subject_prefix"`

	// PairingSeed makes pairings reproducible when non-zero.
	PairingSeed int64 `koanf:"pairing_seed"`
	// TieBreak is random or id.
	TieBreak string `koanf:"tie_break"`
	// DefaultTopCut applies to tournaments created without one.
	DefaultTopCut int `koanf:"default_top_cut"`
	// MaxPlayers caps registrations per tournament (0 = unlimited).
	MaxPlayers int `koanf:"max_players"`

	// MetricsEnabled switches Prometheus recording.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		CORSOrigins:       []string{"*"},
		ReportQueueSize:   10_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        100_000,
		Store:             StoreMemory,
		SQLitePath:        "swiss.db",
		NATSSubjectPrefix: "swiss",
		TieBreak:          "random",
		DefaultTopCut:     8,
		MaxPlayers:        1024,
		MetricsEnabled:    true,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ReportQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DefaultTopCut < 0:
		return fmt.Errorf("%w: default_top_cut must not be negative", ErrInvalidConfig)
	case c.MaxPlayers < 0:
		return fmt.Errorf("%w: max_players must not be negative", ErrInvalidConfig)
	case !slices.Contains([]string{StoreMemory, StoreSQLite}, c.Store):
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite store", ErrInvalidConfig)
	case !slices.Contains([]string{"random", "id"}, c.TieBreak):
		return fmt.Errorf("%w: unknown tie_break %q", ErrInvalidConfig, c.TieBreak)
	case !slices.Contains([]string{"text", "json"}, c.LogFormat):
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
