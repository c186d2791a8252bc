package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/swiss/internal/domain/model"
	"github.com/okian/swiss/pkg/metrics"
)

type tournamentState struct {
	t         model.Tournament
	entrants  []model.Entrant
	index     map[string]int
	rounds    [][]model.MatchRecord
	standings []model.PlayerStanding
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	tournaments map[string]*tournamentState
	closed      bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tournaments: make(map[string]*tournamentState)}
}

func (s *MemoryStore) read() func() {
	start := time.Now()
	s.mu.RLock()
	return func() {
		s.mu.RUnlock()
		metrics.RecordRepositoryQueryLatency(metrics.Since(start))
	}
}

func (s *MemoryStore) write() func() {
	start := time.Now()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		metrics.RecordRepositoryUpdateLatency(metrics.Since(start))
	}
}

// get must be called with the lock held.
func (s *MemoryStore) get(id string) (*tournamentState, error) {
	if s.closed {
		return nil, ErrClosed
	}
	st, ok := s.tournaments[id]
	if !ok {
		return nil, fmt.Errorf("tournament %s: %w", id, ErrNotFound)
	}
	return st, nil
}

// CreateTournament stores a new tournament. It fails with ErrDuplicate when the id exists.
func (s *MemoryStore) CreateTournament(_ context.Context, t model.Tournament) error {
	defer s.write()()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.tournaments[t.ID]; ok {
		return fmt.Errorf("tournament %s: %w", t.ID, ErrDuplicate)
	}
	s.tournaments[t.ID] = &tournamentState{t: t, index: make(map[string]int)}
	return nil
}

// Tournament returns the tournament with the given id or ErrNotFound.
func (s *MemoryStore) Tournament(_ context.Context, id string) (model.Tournament, error) {
	defer s.read()()
	st, err := s.get(id)
	if err != nil {
		return model.Tournament{}, err
	}
	return st.t, nil
}

// Tournaments returns every tournament ordered by creation time, then id.
func (s *MemoryStore) Tournaments(_ context.Context) ([]model.Tournament, error) {
	defer s.read()()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Tournament, 0, len(s.tournaments))
	for _, st := range s.tournaments {
		out = append(out, st.t)
	}
	slices.SortFunc(out, func(a, b model.Tournament) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// AddEntrant registers a player. A user id may appear once per tournament.
func (s *MemoryStore) AddEntrant(_ context.Context, tournamentID string, e model.Entrant) error {
	defer s.write()()
	st, err := s.get(tournamentID)
	if err != nil {
		return err
	}
	if _, ok := st.index[e.UserID]; ok {
		return fmt.Errorf("player %s: %w", e.UserID, ErrDuplicate)
	}
	st.index[e.UserID] = len(st.entrants)
	st.entrants = append(st.entrants, e)
	return nil
}

// Entrants returns the players in registration order.
func (s *MemoryStore) Entrants(_ context.Context, tournamentID string) ([]model.Entrant, error) {
	defer s.read()()
	st, err := s.get(tournamentID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.entrants), nil
}

// DropEntrant marks a player dropped after the given round.
func (s *MemoryStore) DropEntrant(_ context.Context, tournamentID, userID string, afterRound int) error {
	defer s.write()()
	st, err := s.get(tournamentID)
	if err != nil {
		return err
	}
	i, ok := st.index[userID]
	if !ok {
		return fmt.Errorf("player %s: %w", userID, ErrNotFound)
	}
	st.entrants[i].Dropped = true
	st.entrants[i].DroppedAfterRound = afterRound
	return nil
}

// SaveRound stores the pairings of the next round and advances CurrentRound.
func (s *MemoryStore) SaveRound(_ context.Context, tournamentID string, round int, matches []model.MatchRecord) error {
	defer s.write()()
	st, err := s.get(tournamentID)
	if err != nil {
		return err
	}
	if round != st.t.CurrentRound+1 {
		return fmt.Errorf("round %d after %d: %w", round, st.t.CurrentRound, ErrInvalidRound)
	}
	stored := slices.Clone(matches)
	for i := range stored {
		stored[i].Round = round
	}
	slices.SortFunc(stored, func(a, b model.MatchRecord) int { return cmp.Compare(a.TableNumber, b.TableNumber) })
	st.rounds = append(st.rounds, stored)
	st.t.CurrentRound = round
	return nil
}

// Matches returns the full match history across all rounds.
func (s *MemoryStore) Matches(_ context.Context, tournamentID string) ([]model.MatchRecord, error) {
	defer s.read()()
	st, err := s.get(tournamentID)
	if err != nil {
		return nil, err
	}
	var out []model.MatchRecord
	for _, r := range st.rounds {
		out = append(out, r...)
	}
	return out, nil
}

// RoundMatches returns one round ordered by table number.
func (s *MemoryStore) RoundMatches(_ context.Context, tournamentID string, round int) ([]model.MatchRecord, error) {
	defer s.read()()
	st, err := s.get(tournamentID)
	if err != nil {
		return nil, err
	}
	if round < 1 || round > len(st.rounds) {
		return nil, fmt.Errorf("round %d: %w", round, ErrInvalidRound)
	}
	return slices.Clone(st.rounds[round-1]), nil
}

// RecordResult overwrites the result of one table.
func (s *MemoryStore) RecordResult(_ context.Context, tournamentID string, round, table int, result model.ResultCode, gamesWonA, gamesWonB int) error {
	defer s.write()()
	st, err := s.get(tournamentID)
	if err != nil {
		return err
	}
	if round < 1 || round > len(st.rounds) {
		return fmt.Errorf("round %d: %w", round, ErrInvalidRound)
	}
	matches := st.rounds[round-1]
	i := slices.IndexFunc(matches, func(m model.MatchRecord) bool { return m.TableNumber == table })
	if i < 0 {
		return fmt.Errorf("round %d table %d: %w", round, table, ErrNotFound)
	}
	matches[i].Result = result
	matches[i].GamesWonA = gamesWonA
	matches[i].GamesWonB = gamesWonB
	return nil
}

// SaveStandings replaces the last published standings snapshot.
func (s *MemoryStore) SaveStandings(_ context.Context, tournamentID string, rows []model.PlayerStanding) error {
	defer s.write()()
	st, err := s.get(tournamentID)
	if err != nil {
		return err
	}
	st.standings = slices.Clone(rows)
	return nil
}

// Standings returns the last saved snapshot, which may be empty.
func (s *MemoryStore) Standings(_ context.Context, tournamentID string) ([]model.PlayerStanding, error) {
	defer s.read()()
	st, err := s.get(tournamentID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(st.standings), nil
}

// Close releases the store. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	defer s.write()()
	s.closed = true
	return nil
}
