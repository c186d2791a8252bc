// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	service "github.com/okian/swiss/internal/app"
	"github.com/okian/swiss/internal/adapters/repository"
	"github.com/okian/swiss/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CreateTournament(ctx context.Context, in service.NewTournament) (model.Tournament, error)
	Tournament(ctx context.Context, id string) (model.Tournament, error)
	Tournaments(ctx context.Context) ([]model.Tournament, error)

	RegisterPlayer(ctx context.Context, tournamentID, name, userID string) (model.Entrant, error)
	DropPlayer(ctx context.Context, tournamentID, userID string) (model.Entrant, error)

	// SubmitReport queues a result. Returns duplicate=true for a report id
	// already seen and service.ErrBackpressure when the queue is full.
	SubmitReport(ctx context.Context, e model.ReportEvent) (duplicate bool, err error)

	Standings(ctx context.Context, id string) ([]model.PlayerStanding, error)
	State(ctx context.Context, id string) (service.TournamentState, error)
	NextRound(ctx context.Context, id string) (service.Round, error)
	Pairings(ctx context.Context, id string, round int) ([]model.MatchRecord, error)
	CanOfferDraw(ctx context.Context, id, playerA, playerB string) (bool, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	tournamentHandler *TournamentHandler
	reportHandler     *ReportHandler
	roundHandler      *RoundHandler

	corsOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the origins allowed by the CORS middleware.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		tournamentHandler: NewTournamentHandler(deps),
		reportHandler:     NewReportHandler(deps),
		roundHandler:      NewRoundHandler(deps),
		corsOrigins:       []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns a chi router carrying the shared middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/tournaments", func(r chi.Router) {
		r.Post("/", s.tournamentHandler.HandleCreate)
		r.Get("/", s.tournamentHandler.HandleList)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.tournamentHandler.HandleGet)
			r.Post("/players", s.tournamentHandler.HandleRegister)
			r.Post("/players/{userID}/drop", s.tournamentHandler.HandleDrop)

			r.Post("/reports", s.reportHandler.HandlePostReport)

			r.Get("/standings", s.roundHandler.HandleStandings)
			r.Get("/state", s.roundHandler.HandleState)
			r.Post("/rounds", s.roundHandler.HandleNextRound)
			r.Get("/rounds/{round}", s.roundHandler.HandleGetRound)
			r.Get("/draw-offer", s.roundHandler.HandleDrawOffer)
		})
	})
}

// Handler builds the router and registers every route on it.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := s.Router()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and store sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidTournament),
		errors.Is(err, service.ErrInvalidReport):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrInvalidRound),
		errors.Is(err, service.ErrUnknownPlayer):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrRegistrationClosed),
		errors.Is(err, service.ErrTournamentFull),
		errors.Is(err, service.ErrNotEnoughPlayers),
		errors.Is(err, service.ErrRoundInProgress),
		errors.Is(err, service.ErrTournamentComplete):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}
