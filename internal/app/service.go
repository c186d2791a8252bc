// Package service runs Swiss tournaments on top of the standings,
// progress and pairing packages and implements the dependencies required
// by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/swiss/internal/adapters/mq/queue"
	workerpool "github.com/okian/swiss/internal/adapters/mq/worker"
	"github.com/okian/swiss/internal/adapters/notify"
	"github.com/okian/swiss/internal/adapters/repository"
	"github.com/okian/swiss/internal/domain/dedupe"
	"github.com/okian/swiss/internal/domain/model"
	"github.com/okian/swiss/internal/domain/pairing"
	"github.com/okian/swiss/internal/domain/progress"
	"github.com/okian/swiss/internal/domain/standings"
	"github.com/okian/swiss/pkg/logger"
	"github.com/okian/swiss/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// NewTournament is the input of CreateTournament.
type NewTournament struct {
	Name string `json:"name"`
	// TotalRounds overrides the recommended round count when > 0.
	TotalRounds int `json:"total_rounds"`
	// AvoidRematches defaults to true when omitted.
	AvoidRematches *bool `json:"avoid_rematches,omitempty"`
	// TopCut defaults to the service's configured value when 0.
	TopCut int `json:"top_cut"`
}

// Round is the outcome of pairing a new round.
type Round struct {
	TournamentID string          `json:"tournament_id"`
	Number       int             `json:"round"`
	Pairings     []model.Pairing `json:"pairings"`
	ByePlayerID  string          `json:"bye_player_id,omitempty"`
	Unpaired     []string        `json:"unpaired,omitempty"`
	Rematches    int             `json:"rematches"`
}

// TournamentState is the evaluator's view plus the players who can still
// catch the leader.
type TournamentState struct {
	progress.State
	TournamentID       string   `json:"tournament_id"`
	CurrentRound       int      `json:"current_round"`
	AllMatchesReported bool     `json:"all_matches_reported"`
	InContention       []string `json:"in_contention"`
}

// Service implements the API dependencies for the tournament system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	publisher notify.Publisher
	engine    *pairing.Engine
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	defaultTopCut int
	maxPlayers    int

	// Per-tournament serialization of writes.
	locks     sync.Map // tournament id -> *sync.Mutex
	completed sync.Map // tournament id -> reason

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
	now    func() time.Time
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     10_000,
		dedupeSize:    100_000,
		defaultTopCut: 8,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.publisher == nil {
		s.publisher = notify.NewLocalPublisher()
	}
	if s.engine == nil {
		s.engine = pairing.NewEngine()
	}
	return s
}

// Start creates the report pipeline and starts the workers. The workers
// outlive ctx; they run until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting tournament service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ApplierFunc(s.ApplyReport))
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "tournament service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the report queue, then closes the store and the publisher.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping tournament service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()

	if err := s.publisher.Close(); err != nil {
		s.logger.Warn(ctx, "publisher close", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "tournament service stopped")
}

func (s *Service) lockFor(id string) *sync.Mutex {
	l, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// CreateTournament stores a new tournament with a generated id.
func (s *Service) CreateTournament(ctx context.Context, in NewTournament) (model.Tournament, error) {
	if in.Name == "" {
		return model.Tournament{}, fmt.Errorf("%w: name is required", ErrInvalidTournament)
	}
	if in.TotalRounds < 0 || in.TopCut < 0 {
		return model.Tournament{}, fmt.Errorf("%w: total_rounds and top_cut must not be negative", ErrInvalidTournament)
	}

	t := model.Tournament{
		ID:             uuid.NewString(),
		Name:           in.Name,
		TotalRounds:    in.TotalRounds,
		AvoidRematches: true,
		TopCut:         in.TopCut,
		CreatedAt:      s.now().UTC(),
	}
	if in.AvoidRematches != nil {
		t.AvoidRematches = *in.AvoidRematches
	}
	if t.TopCut == 0 {
		t.TopCut = s.defaultTopCut
	}
	if err := s.store.CreateTournament(ctx, t); err != nil {
		return model.Tournament{}, err
	}
	s.logger.Info(ctx, "tournament created",
		logger.String("tournament_id", t.ID),
		logger.String("name", t.Name),
	)
	return t, nil
}

// Tournament returns one tournament.
func (s *Service) Tournament(ctx context.Context, id string) (model.Tournament, error) {
	return s.store.Tournament(ctx, id)
}

// Tournaments lists every tournament, oldest first.
func (s *Service) Tournaments(ctx context.Context) ([]model.Tournament, error) {
	return s.store.Tournaments(ctx)
}

// RegisterPlayer enters a player. An empty userID gets a generated one and
// an empty name defaults to the user id. Registration closes once round 1
// has been paired.
func (s *Service) RegisterPlayer(ctx context.Context, tournamentID, name, userID string) (model.Entrant, error) {
	lock := s.lockFor(tournamentID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.store.Tournament(ctx, tournamentID)
	if err != nil {
		return model.Entrant{}, err
	}
	if t.CurrentRound > 0 {
		return model.Entrant{}, fmt.Errorf("%w: round %d already paired", ErrRegistrationClosed, t.CurrentRound)
	}
	if s.maxPlayers > 0 {
		entrants, err := s.store.Entrants(ctx, tournamentID)
		if err != nil {
			return model.Entrant{}, err
		}
		if len(entrants) >= s.maxPlayers {
			return model.Entrant{}, fmt.Errorf("%w: %d players", ErrTournamentFull, s.maxPlayers)
		}
	}

	if userID == "" {
		userID = uuid.NewString()
	}
	if name == "" {
		name = userID
	}
	e := model.Entrant{UserID: userID, Name: name}
	if err := s.store.AddEntrant(ctx, tournamentID, e); err != nil {
		return model.Entrant{}, err
	}
	metrics.RecordPlayerRegistered()
	s.publish(ctx, notify.Event{
		Type:         notify.EventPlayerRegistered,
		TournamentID: tournamentID,
		Payload:      e,
	})
	return e, nil
}

// DropPlayer removes a player from future pairings. Their results stay in
// the history; dropping twice is a no-op.
func (s *Service) DropPlayer(ctx context.Context, tournamentID, userID string) (model.Entrant, error) {
	lock := s.lockFor(tournamentID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.store.Tournament(ctx, tournamentID)
	if err != nil {
		return model.Entrant{}, err
	}
	entrants, err := s.store.Entrants(ctx, tournamentID)
	if err != nil {
		return model.Entrant{}, err
	}
	i := slices.IndexFunc(entrants, func(e model.Entrant) bool { return e.UserID == userID })
	if i < 0 {
		return model.Entrant{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, userID)
	}
	if entrants[i].Dropped {
		return entrants[i], nil
	}

	if err := s.store.DropEntrant(ctx, tournamentID, userID, t.CurrentRound); err != nil {
		return model.Entrant{}, err
	}
	e := entrants[i]
	e.Dropped = true
	e.DroppedAfterRound = t.CurrentRound
	metrics.RecordPlayerDropped()
	s.publish(ctx, notify.Event{
		Type:         notify.EventPlayerDropped,
		TournamentID: tournamentID,
		Round:        t.CurrentRound,
		Payload:      e,
	})

	if _, err := s.refresh(ctx, tournamentID); err != nil {
		return e, err
	}
	return e, nil
}

// SubmitReport queues a match result. duplicate is true when the report id
// was already seen for this tournament; the report is then ignored.
func (s *Service) SubmitReport(ctx context.Context, e model.ReportEvent) (duplicate bool, err error) { //nolint:gocritic // hugeParam: reports travel by value
	s.mu.RLock()
	started, deduper, queue := s.started, s.deduper, s.queue
	s.mu.RUnlock()
	if !started {
		return false, ErrNotStarted
	}

	if err := validateReport(e); err != nil {
		metrics.RecordReportRejected()
		return false, err
	}
	t, err := s.store.Tournament(ctx, e.TournamentID)
	if err != nil {
		metrics.RecordReportRejected()
		return false, err
	}
	// Reject reports for unknown tables up front so the id stays usable.
	if err := s.checkTable(ctx, t, e); err != nil {
		metrics.RecordReportRejected()
		return false, err
	}

	key := dedupe.Key(e.TournamentID, e.ReportID)
	if deduper.SeenAndRecord(ctx, key) {
		metrics.RecordReportDuplicate()
		s.logger.Debug(ctx, "duplicate report ignored",
			logger.String("tournament_id", e.TournamentID),
			logger.String("report_id", e.ReportID),
		)
		return true, nil
	}

	if e.ReportedAt.IsZero() {
		e.ReportedAt = s.now().UTC()
	}
	if !queue.Enqueue(ctx, e) {
		// Forget the id so the client can resubmit.
		deduper.Unrecord(ctx, key)
		metrics.RecordReportRejected()
		return false, ErrBackpressure
	}
	metrics.RecordReportAccepted()
	return false, nil
}

func (s *Service) forgetReport(ctx context.Context, e model.ReportEvent) { //nolint:gocritic // hugeParam: reports travel by value
	s.mu.RLock()
	deduper := s.deduper
	s.mu.RUnlock()
	if deduper != nil {
		deduper.Unrecord(ctx, dedupe.Key(e.TournamentID, e.ReportID))
	}
}

func validateReport(e model.ReportEvent) error { //nolint:gocritic // hugeParam: reports travel by value
	switch {
	case e.ReportID == "":
		return fmt.Errorf("%w: report_id is required", ErrInvalidReport)
	case e.TournamentID == "":
		return fmt.Errorf("%w: tournament_id is required", ErrInvalidReport)
	case e.Round < 1 || e.TableNumber < 1:
		return fmt.Errorf("%w: round and table_number must be positive", ErrInvalidReport)
	case !e.Result.Valid() || e.Result == model.Unreported:
		return fmt.Errorf("%w: result %s", ErrInvalidReport, e.Result)
	case e.GamesWonA < 0 || e.GamesWonB < 0:
		return fmt.Errorf("%w: games won must not be negative", ErrInvalidReport)
	}
	return nil
}

// checkTable verifies that the report targets a contested table of a paired round.
func (s *Service) checkTable(ctx context.Context, t model.Tournament, e model.ReportEvent) error { //nolint:gocritic // hugeParam: reports travel by value
	if e.Round > t.CurrentRound {
		return fmt.Errorf("%w: round %d not paired yet", ErrInvalidReport, e.Round)
	}
	matches, err := s.store.RoundMatches(ctx, e.TournamentID, e.Round)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(matches, func(m model.MatchRecord) bool { return m.TableNumber == e.TableNumber })
	switch {
	case i < 0:
		return fmt.Errorf("%w: no table %d in round %d", ErrInvalidReport, e.TableNumber, e.Round)
	case matches[i].IsBye():
		return fmt.Errorf("%w: table %d is a bye", ErrInvalidReport, e.TableNumber)
	}
	return nil
}

// ApplyReport stores one result and republishes standings. It runs on the
// report workers and is also safe to call directly. A report that fails here
// has its id forgotten so a corrected report can reuse it.
func (s *Service) ApplyReport(ctx context.Context, e model.ReportEvent) (err error) { //nolint:gocritic // hugeParam: reports travel by value
	if err := validateReport(e); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			s.forgetReport(ctx, e)
		}
	}()

	lock := s.lockFor(e.TournamentID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.store.Tournament(ctx, e.TournamentID)
	if err != nil {
		return err
	}
	if err := s.checkTable(ctx, t, e); err != nil {
		return err
	}

	if err := s.store.RecordResult(ctx, e.TournamentID, e.Round, e.TableNumber, e.Result, e.GamesWonA, e.GamesWonB); err != nil {
		return err
	}
	_, err = s.refresh(ctx, e.TournamentID)
	return err
}

// refresh recomputes standings, saves the snapshot, publishes it and marks
// the tournament completed when the evaluator says so. Callers hold the
// tournament lock.
func (s *Service) refresh(ctx context.Context, id string) (TournamentState, error) {
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return TournamentState{}, err
	}
	if err := s.store.SaveStandings(ctx, id, snap.rows); err != nil {
		return TournamentState{}, err
	}
	s.publish(ctx, notify.Event{
		Type:         notify.EventStandingsUpdated,
		TournamentID: id,
		Round:        snap.t.CurrentRound,
		Payload:      snap.rows,
	})

	st := snap.state()
	if st.IsComplete {
		s.markCompleted(ctx, snap)
	}
	return st, nil
}

// snapshot is everything known about a tournament at one instant.
type snapshot struct {
	t        model.Tournament
	entrants []model.Entrant
	matches  []model.MatchRecord
	rows     []model.PlayerStanding
}

func (s *Service) snapshot(ctx context.Context, id string) (snapshot, error) {
	t, err := s.store.Tournament(ctx, id)
	if err != nil {
		return snapshot{}, err
	}
	entrants, err := s.store.Entrants(ctx, id)
	if err != nil {
		return snapshot{}, err
	}
	matches, err := s.store.Matches(ctx, id)
	if err != nil {
		return snapshot{}, err
	}

	in := standings.Input{
		PlayerIDs: make([]string, 0, len(entrants)),
		Names:     make(map[string]string, len(entrants)),
		Matches:   matches,
		Dropped:   make(map[string]int),
	}
	for _, e := range entrants {
		in.PlayerIDs = append(in.PlayerIDs, e.UserID)
		in.Names[e.UserID] = e.Name
		if e.Dropped {
			in.Dropped[e.UserID] = e.DroppedAfterRound
		}
	}

	start := time.Now()
	rows := standings.Calculate(in)
	metrics.RecordStandingsComputed(metrics.Since(start))

	return snapshot{t: t, entrants: entrants, matches: matches, rows: rows}, nil
}

func (sn snapshot) allReported() bool {
	for _, m := range sn.matches {
		if m.Round == sn.t.CurrentRound && m.Result == model.Unreported {
			return false
		}
	}
	return true
}

func (sn snapshot) state() TournamentState {
	reported := sn.allReported()
	st := progress.Evaluate(progress.Input{
		PlayerCount:        len(sn.entrants),
		CurrentRound:       sn.t.CurrentRound,
		TotalRoundsPlanned: sn.t.TotalRounds,
		Standings:          sn.rows,
		AllMatchesReported: reported,
	})
	contention := progress.InContention(sn.rows, st.RoundsRemaining)
	if contention == nil {
		contention = []string{}
	}
	return TournamentState{
		State:              st,
		TournamentID:       sn.t.ID,
		CurrentRound:       sn.t.CurrentRound,
		AllMatchesReported: reported,
		InContention:       contention,
	}
}

func (s *Service) markCompleted(ctx context.Context, sn snapshot) {
	st := sn.state()
	if _, done := s.completed.LoadOrStore(sn.t.ID, st.Reason); done {
		return
	}
	metrics.RecordTournamentCompleted(st.Reason)
	s.logger.Info(ctx, "tournament completed",
		logger.String("tournament_id", sn.t.ID),
		logger.String("reason", st.Reason),
		logger.Int("rounds", sn.t.CurrentRound),
	)
	s.publish(ctx, notify.Event{
		Type:         notify.EventTournamentCompleted,
		TournamentID: sn.t.ID,
		Round:        sn.t.CurrentRound,
		Payload: map[string]any{
			"reason":    st.Reason,
			"standings": sn.rows,
		},
	})
}

// Standings recomputes standings from the full match history.
func (s *Service) Standings(ctx context.Context, id string) ([]model.PlayerStanding, error) {
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return snap.rows, nil
}

// State evaluates the tournament on fresh standings.
func (s *Service) State(ctx context.Context, id string) (TournamentState, error) {
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return TournamentState{}, err
	}
	return snap.state(), nil
}

// NextRound pairs and stores the next round. Only non-dropped players are
// paired; a bye is stored as an immediate win for its player.
func (s *Service) NextRound(ctx context.Context, id string) (Round, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return Round{}, err
	}

	active := make([]model.PlayerStanding, 0, len(snap.rows))
	for _, r := range snap.rows {
		if !r.IsDropped {
			active = append(active, r)
		}
	}
	if snap.t.CurrentRound == 0 && len(active) < 2 {
		return Round{}, fmt.Errorf("%w: %d registered", ErrNotEnoughPlayers, len(active))
	}

	st := snap.state()
	switch {
	case st.IsComplete:
		s.markCompleted(ctx, snap)
		return Round{}, fmt.Errorf("%w: %s", ErrTournamentComplete, st.Reason)
	case !st.CanStartNextRound:
		return Round{}, fmt.Errorf("%w: round %d has unreported matches", ErrRoundInProgress, snap.t.CurrentRound)
	}

	records := standings.BuildPlayerRecords(active, snap.matches)
	start := time.Now()
	res := s.engine.GeneratePairings(records, snap.t.AvoidRematches)
	metrics.RecordRoundPaired(metrics.Since(start), res.ByePlayerID != "", res.Rematches, len(res.Unpaired))

	number := snap.t.CurrentRound + 1
	matches := make([]model.MatchRecord, 0, len(res.Pairings))
	for _, p := range res.Pairings {
		m := model.MatchRecord{
			Round:       number,
			TableNumber: p.TableNumber,
			PlayerAID:   p.PlayerAID,
			PlayerBID:   p.PlayerBID,
		}
		if p.IsBye() {
			m.Result = model.PlayerAWin
		}
		matches = append(matches, m)
	}
	if err := s.store.SaveRound(ctx, id, number, matches); err != nil {
		return Round{}, err
	}

	round := Round{
		TournamentID: id,
		Number:       number,
		Pairings:     res.Pairings,
		ByePlayerID:  res.ByePlayerID,
		Unpaired:     res.Unpaired,
		Rematches:    res.Rematches,
	}
	s.logger.Info(ctx, "round paired",
		logger.String("tournament_id", id),
		logger.Int("round", number),
		logger.Int("tables", len(res.Pairings)),
		logger.String("bye", res.ByePlayerID),
		logger.Int("rematches", res.Rematches),
	)
	if len(res.Unpaired) > 0 {
		s.logger.Warn(ctx, "players left unpaired",
			logger.String("tournament_id", id),
			logger.Int("round", number),
			logger.Any("players", res.Unpaired),
		)
	}
	s.publish(ctx, notify.Event{
		Type:         notify.EventRoundPaired,
		TournamentID: id,
		Round:        number,
		Payload:      round,
	})

	if _, err := s.refresh(ctx, id); err != nil {
		return round, err
	}
	return round, nil
}

// Pairings returns the stored matches of one round, results included.
func (s *Service) Pairings(ctx context.Context, id string, round int) ([]model.MatchRecord, error) {
	return s.store.RoundMatches(ctx, id, round)
}

// CanOfferDraw reports whether two players may agree an intentional draw.
func (s *Service) CanOfferDraw(ctx context.Context, id, playerA, playerB string) (bool, error) {
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return false, err
	}
	rank := func(userID string) (int, error) {
		i := slices.IndexFunc(snap.rows, func(r model.PlayerStanding) bool { return r.UserID == userID })
		if i < 0 {
			return 0, fmt.Errorf("%w: %s", ErrUnknownPlayer, userID)
		}
		return snap.rows[i].Rank, nil
	}
	ra, err := rank(playerA)
	if err != nil {
		return false, err
	}
	rb, err := rank(playerB)
	if err != nil {
		return false, err
	}

	st := snap.state()
	ok := progress.CanOfferIntentionalDraw(snap.t.CurrentRound, st.TargetRounds, ra, rb, snap.t.TopCut)
	metrics.RecordDrawOfferCheck(ok)
	return ok, nil
}

func (s *Service) publish(ctx context.Context, e notify.Event) {
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, e); err != nil && !errors.Is(err, notify.ErrClosed) {
		metrics.RecordErrorByComponent("notify", "publish_error")
		s.logger.Warn(ctx, "event publish failed",
			logger.String("type", e.Type),
			logger.String("tournament_id", e.TournamentID),
			logger.Error(err),
		)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	stats["queueLength"] = s.queue.Len(ctx)
	stats["dedupeEntries"] = s.deduper.Size()
	if ts, err := s.store.Tournaments(ctx); err == nil {
		active := 0
		for _, t := range ts {
			if _, done := s.completed.Load(t.ID); !done {
				active++
			}
		}
		stats["tournaments"] = len(ts)
		stats["activeTournaments"] = active
		metrics.UpdateTournamentsActive(active)
	}
	return stats
}
