package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/swiss/internal/domain/model"
)

type drawOfferResponse struct {
	PlayerA string `json:"player_a"`
	PlayerB string `json:"player_b"`
	Allowed bool   `json:"allowed"`
}

// RoundHandler serves standings, state and pairings.
type RoundHandler struct {
	deps Dependencies
}

// NewRoundHandler creates a new round handler.
func NewRoundHandler(deps Dependencies) *RoundHandler {
	return &RoundHandler{deps: deps}
}

// HandleStandings handles GET /tournaments/{id}/standings.
func (h *RoundHandler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Standings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []model.PlayerStanding{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleState handles GET /tournaments/{id}/state.
func (h *RoundHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleNextRound handles POST /tournaments/{id}/rounds.
func (h *RoundHandler) HandleNextRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.deps.NextRound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// HandleGetRound handles GET /tournaments/{id}/rounds/{round}.
func (h *RoundHandler) HandleGetRound(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("round must be a positive integer"))
		return
	}
	matches, err := h.deps.Pairings(r.Context(), chi.URLParam(r, "id"), n)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleDrawOffer handles GET /tournaments/{id}/draw-offer?a=..&b=..
func (h *RoundHandler) HandleDrawOffer(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" || a == b {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("query parameters a and b must name two players"))
		return
	}
	ok, err := h.deps.CanOfferDraw(r.Context(), chi.URLParam(r, "id"), a, b)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drawOfferResponse{PlayerA: a, PlayerB: b, Allowed: ok})
}
