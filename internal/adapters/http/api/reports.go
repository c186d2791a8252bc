package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/swiss/internal/domain/model"
)

// reportRequest mirrors the OpenAPI schema for POST /tournaments/{id}/reports.
type reportRequest struct {
	ReportID    string           `json:"report_id"`
	Round       int              `json:"round"`
	TableNumber int              `json:"table_number"`
	Result      model.ResultCode `json:"result"`
	GamesWonA   int              `json:"games_won_a"`
	GamesWonB   int              `json:"games_won_b"`
}

func (req reportRequest) validate() error {
	switch {
	case strings.TrimSpace(req.ReportID) == "":
		return errors.New("missing report_id")
	case req.Round < 1:
		return errors.New("round must be positive")
	case req.TableNumber < 1:
		return errors.New("table_number must be positive")
	case req.Result == model.Unreported:
		return errors.New("missing result")
	}
	return nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// ReportHandler accepts match results.
type ReportHandler struct {
	deps Dependencies
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps Dependencies) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandlePostReport handles POST /tournaments/{id}/reports. Reports are
// applied asynchronously; 202 means queued, 200 means already seen.
func (h *ReportHandler) HandlePostReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	duplicate, err := h.deps.SubmitReport(r.Context(), model.ReportEvent{
		ReportID:     req.ReportID,
		TournamentID: chi.URLParam(r, "id"),
		Round:        req.Round,
		TableNumber:  req.TableNumber,
		Result:       req.Result,
		GamesWonA:    req.GamesWonA,
		GamesWonB:    req.GamesWonB,
	})
	switch {
	case err != nil:
		writeServiceError(w, err)
	case duplicate:
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
	}
}
