package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/okian/swiss/internal/domain/model"
	"github.com/okian/swiss/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tournaments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	total_rounds INTEGER NOT NULL DEFAULT 0,
	avoid_rematches INTEGER NOT NULL DEFAULT 1,
	top_cut INTEGER NOT NULL DEFAULT 0,
	current_round INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entrants (
	tournament_id TEXT NOT NULL REFERENCES tournaments(id),
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	dropped INTEGER NOT NULL DEFAULT 0,
	dropped_after_round INTEGER NOT NULL DEFAULT 0,
	seq INTEGER NOT NULL,
	PRIMARY KEY (tournament_id, user_id)
);

CREATE TABLE IF NOT EXISTS matches (
	tournament_id TEXT NOT NULL REFERENCES tournaments(id),
	round INTEGER NOT NULL,
	table_number INTEGER NOT NULL,
	player_a_id TEXT NOT NULL,
	player_b_id TEXT NOT NULL DEFAULT '',
	result INTEGER NOT NULL DEFAULT 0,
	games_won_a INTEGER NOT NULL DEFAULT 0,
	games_won_b INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tournament_id, round, table_number)
);

CREATE TABLE IF NOT EXISTS standings (
	tournament_id TEXT PRIMARY KEY REFERENCES tournaments(id),
	body TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore persists tournaments in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// bootstraps the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func observeQuery(start time.Time)  { metrics.RecordRepositoryQueryLatency(metrics.Since(start)) }
func observeUpdate(start time.Time) { metrics.RecordRepositoryUpdateLatency(metrics.Since(start)) }

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// CreateTournament stores a new tournament. It fails with ErrDuplicate when the id exists.
func (s *SQLiteStore) CreateTournament(ctx context.Context, t model.Tournament) error {
	defer observeUpdate(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tournaments (id, name, total_rounds, avoid_rematches, top_cut, current_round, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.TotalRounds, t.AvoidRematches, t.TopCut, t.CurrentRound, t.CreatedAt.UnixNano())
	if isConstraint(err) {
		return fmt.Errorf("tournament %s: %w", t.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert tournament: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTournament(r rowScanner) (model.Tournament, error) {
	var t model.Tournament
	var created int64
	if err := r.Scan(&t.ID, &t.Name, &t.TotalRounds, &t.AvoidRematches, &t.TopCut, &t.CurrentRound, &created); err != nil {
		return model.Tournament{}, err
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	return t, nil
}

const tournamentColumns = `id, name, total_rounds, avoid_rematches, top_cut, current_round, created_at`

// Tournament returns the tournament with the given id or ErrNotFound.
func (s *SQLiteStore) Tournament(ctx context.Context, id string) (model.Tournament, error) {
	defer observeQuery(time.Now())
	return s.tournament(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) tournament(ctx context.Context, q querier, id string) (model.Tournament, error) {
	t, err := scanTournament(q.QueryRowContext(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tournament{}, fmt.Errorf("tournament %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Tournament{}, fmt.Errorf("select tournament: %w", err)
	}
	return t, nil
}

// Tournaments returns every tournament ordered by creation time, then id.
func (s *SQLiteStore) Tournaments(ctx context.Context) ([]model.Tournament, error) {
	defer observeQuery(time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT `+tournamentColumns+` FROM tournaments ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	defer rows.Close()

	var out []model.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tournament: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) exists(ctx context.Context, tournamentID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tournaments WHERE id = ?`, tournamentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("tournament %s: %w", tournamentID, ErrNotFound)
	}
	return err
}

// AddEntrant registers a player. A user id may appear once per tournament.
func (s *SQLiteStore) AddEntrant(ctx context.Context, tournamentID string, e model.Entrant) error {
	defer observeUpdate(time.Now())
	if err := s.exists(ctx, tournamentID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entrants (tournament_id, user_id, name, dropped, dropped_after_round, seq)
		 VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entrants WHERE tournament_id = ?))`,
		tournamentID, e.UserID, e.Name, e.Dropped, e.DroppedAfterRound, tournamentID)
	if isConstraint(err) {
		return fmt.Errorf("player %s: %w", e.UserID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert entrant: %w", err)
	}
	return nil
}

// Entrants returns the players in registration order.
func (s *SQLiteStore) Entrants(ctx context.Context, tournamentID string) ([]model.Entrant, error) {
	defer observeQuery(time.Now())
	if err := s.exists(ctx, tournamentID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, dropped, dropped_after_round FROM entrants WHERE tournament_id = ? ORDER BY seq`,
		tournamentID)
	if err != nil {
		return nil, fmt.Errorf("list entrants: %w", err)
	}
	defer rows.Close()

	var out []model.Entrant
	for rows.Next() {
		var e model.Entrant
		if err := rows.Scan(&e.UserID, &e.Name, &e.Dropped, &e.DroppedAfterRound); err != nil {
			return nil, fmt.Errorf("scan entrant: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DropEntrant marks a player dropped after the given round.
func (s *SQLiteStore) DropEntrant(ctx context.Context, tournamentID, userID string, afterRound int) error {
	defer observeUpdate(time.Now())
	if err := s.exists(ctx, tournamentID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entrants SET dropped = 1, dropped_after_round = ? WHERE tournament_id = ? AND user_id = ?`,
		afterRound, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("drop entrant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("player %s: %w", userID, ErrNotFound)
	}
	return nil
}

// SaveRound stores the pairings of the next round and advances CurrentRound.
func (s *SQLiteStore) SaveRound(ctx context.Context, tournamentID string, round int, matches []model.MatchRecord) (err error) {
	defer observeUpdate(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin round: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	t, err := s.tournament(ctx, tx, tournamentID)
	if err != nil {
		return err
	}
	if round != t.CurrentRound+1 {
		return fmt.Errorf("round %d after %d: %w", round, t.CurrentRound, ErrInvalidRound)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches (tournament_id, round, table_number, player_a_id, player_b_id, result, games_won_a, games_won_b)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare match insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		if _, err = stmt.ExecContext(ctx, tournamentID, round, m.TableNumber, m.PlayerAID, m.PlayerBID,
			int(m.Result), m.GamesWonA, m.GamesWonB); err != nil {
			if isConstraint(err) {
				return fmt.Errorf("round %d table %d: %w", round, m.TableNumber, ErrDuplicate)
			}
			return fmt.Errorf("insert match: %w", err)
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE tournaments SET current_round = ? WHERE id = ?`, round, tournamentID); err != nil {
		return fmt.Errorf("advance round: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit round: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryMatches(ctx context.Context, query string, args ...any) ([]model.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []model.MatchRecord
	for rows.Next() {
		var m model.MatchRecord
		var result int
		if err := rows.Scan(&m.Round, &m.TableNumber, &m.PlayerAID, &m.PlayerBID, &result, &m.GamesWonA, &m.GamesWonB); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Result = model.ResultCode(result)
		out = append(out, m)
	}
	return out, rows.Err()
}

const matchColumns = `round, table_number, player_a_id, player_b_id, result, games_won_a, games_won_b`

// Matches returns the full match history across all rounds.
func (s *SQLiteStore) Matches(ctx context.Context, tournamentID string) ([]model.MatchRecord, error) {
	defer observeQuery(time.Now())
	if err := s.exists(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.queryMatches(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE tournament_id = ? ORDER BY round, table_number`, tournamentID)
}

// RoundMatches returns one round ordered by table number.
func (s *SQLiteStore) RoundMatches(ctx context.Context, tournamentID string, round int) ([]model.MatchRecord, error) {
	defer observeQuery(time.Now())
	if err := s.exists(ctx, tournamentID); err != nil {
		return nil, err
	}
	out, err := s.queryMatches(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE tournament_id = ? AND round = ? ORDER BY table_number`,
		tournamentID, round)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("round %d: %w", round, ErrInvalidRound)
	}
	return out, nil
}

// RecordResult overwrites the result of one table.
func (s *SQLiteStore) RecordResult(ctx context.Context, tournamentID string, round, table int, result model.ResultCode, gamesWonA, gamesWonB int) error {
	defer observeUpdate(time.Now())
	if err := s.exists(ctx, tournamentID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET result = ?, games_won_a = ?, games_won_b = ?
		 WHERE tournament_id = ? AND round = ? AND table_number = ?`,
		int(result), gamesWonA, gamesWonB, tournamentID, round, table)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE tournament_id = ? AND round = ? LIMIT 1`, tournamentID, round).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("round %d: %w", round, ErrInvalidRound)
	}
	return fmt.Errorf("round %d table %d: %w", round, table, ErrNotFound)
}

// SaveStandings replaces the last published standings snapshot.
func (s *SQLiteStore) SaveStandings(ctx context.Context, tournamentID string, rows []model.PlayerStanding) error {
	defer observeUpdate(time.Now())
	if err := s.exists(ctx, tournamentID); err != nil {
		return err
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode standings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO standings (tournament_id, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(tournament_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		tournamentID, string(body), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save standings: %w", err)
	}
	return nil
}

// Standings returns the last saved snapshot, which may be empty.
func (s *SQLiteStore) Standings(ctx context.Context, tournamentID string) ([]model.PlayerStanding, error) {
	defer observeQuery(time.Now())
	if err := s.exists(ctx, tournamentID); err != nil {
		return nil, err
	}
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM standings WHERE tournament_id = ?`, tournamentID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load standings: %w", err)
	}
	var rows []model.PlayerStanding
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return nil, fmt.Errorf("decode standings: %w", err)
	}
	return rows, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
