package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/swiss/internal/app"
	"github.com/okian/swiss/internal/domain/model"
)

// createTournamentRequest mirrors the OpenAPI schema for POST /tournaments.
type createTournamentRequest struct {
	Name           string `json:"name"`
	TotalRounds    int    `json:"total_rounds"`
	AvoidRematches *bool  `json:"avoid_rematches"`
	TopCut         int    `json:"top_cut"`
}

type registerRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// TournamentHandler handles tournament and registration requests.
type TournamentHandler struct {
	deps Dependencies
}

// NewTournamentHandler creates a new tournament handler.
func NewTournamentHandler(deps Dependencies) *TournamentHandler {
	return &TournamentHandler{deps: deps}
}

// HandleCreate handles POST /tournaments.
func (h *TournamentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	t, err := h.deps.CreateTournament(r.Context(), service.NewTournament{
		Name:           req.Name,
		TotalRounds:    req.TotalRounds,
		AvoidRematches: req.AvoidRematches,
		TopCut:         req.TopCut,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleList handles GET /tournaments.
func (h *TournamentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ts, err := h.deps.Tournaments(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ts == nil {
		ts = []model.Tournament{}
	}
	writeJSON(w, http.StatusOK, ts)
}

// HandleGet handles GET /tournaments/{id}.
func (h *TournamentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Tournament(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleRegister handles POST /tournaments/{id}/players.
func (h *TournamentHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	e, err := h.deps.RegisterPlayer(r.Context(), chi.URLParam(r, "id"), req.Name, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HandleDrop handles POST /tournaments/{id}/players/{userID}/drop.
func (h *TournamentHandler) HandleDrop(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.DropPlayer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
