// Package repository persists tournaments, entrants, match history and the
// last published standings.
package repository

import (
	"context"

	"github.com/okian/swiss/internal/domain/model"
)

// Store provides read/write access to tournament state.
type Store interface {
	// CreateTournament stores a new tournament. Returns ErrDuplicate if the
	// id is taken.
	CreateTournament(ctx context.Context, t model.Tournament) error
	// Tournament returns ErrNotFound for an unknown id.
	Tournament(ctx context.Context, id string) (model.Tournament, error)
	// Tournaments lists every tournament, oldest first.
	Tournaments(ctx context.Context) ([]model.Tournament, error)

	// AddEntrant registers a player. Returns ErrDuplicate if the user is
	// already entered.
	AddEntrant(ctx context.Context, tournamentID string, e model.Entrant) error
	// Entrants returns players in registration order.
	Entrants(ctx context.Context, tournamentID string) ([]model.Entrant, error)
	// DropEntrant marks a player as dropped after the given round.
	DropEntrant(ctx context.Context, tournamentID, userID string, afterRound int) error

	// SaveRound stores the pairings of a new round and advances the
	// tournament's current round. round must be current+1, otherwise
	// ErrInvalidRound is returned.
	SaveRound(ctx context.Context, tournamentID string, round int, matches []model.MatchRecord) error
	// Matches returns the full history ordered by round and table.
	Matches(ctx context.Context, tournamentID string) ([]model.MatchRecord, error)
	// RoundMatches returns one round ordered by table. Returns
	// ErrInvalidRound if the round was never paired.
	RoundMatches(ctx context.Context, tournamentID string, round int) ([]model.MatchRecord, error)
	// RecordResult overwrites the result of one table.
	RecordResult(ctx context.Context, tournamentID string, round, table int, result model.ResultCode, gamesWonA, gamesWonB int) error

	// SaveStandings replaces the standings snapshot.
	SaveStandings(ctx context.Context, tournamentID string, rows []model.PlayerStanding) error
	// Standings returns the last snapshot, empty if none was saved.
	Standings(ctx context.Context, tournamentID string) ([]model.PlayerStanding, error)

	Close() error
}
