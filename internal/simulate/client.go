package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	service "github.com/okian/swiss/internal/app"
	"github.com/okian/swiss/internal/domain/model"
)

// Client talks to the tournament HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %d %s %s",
			ErrUnexpectedStatus, method, path, resp.StatusCode, eb.Code, eb.Message)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// Health checks that the service answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

// CreateTournament creates a tournament with the given planned rounds.
func (c *Client) CreateTournament(ctx context.Context, name string, rounds int) (model.Tournament, error) {
	var t model.Tournament
	_, err := c.do(ctx, http.MethodPost, "/tournaments", map[string]any{
		"name":         name,
		"total_rounds": rounds,
	}, &t)
	return t, err
}

// Register adds a player to the tournament.
func (c *Client) Register(ctx context.Context, tournamentID, userID, name string) (model.Entrant, error) {
	var e model.Entrant
	_, err := c.do(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(tournamentID)+"/players",
		map[string]string{"user_id": userID, "name": name}, &e)
	return e, err
}

// Drop removes a player from future rounds.
func (c *Client) Drop(ctx context.Context, tournamentID, userID string) error {
	_, err := c.do(ctx, http.MethodPost,
		"/tournaments/"+url.PathEscape(tournamentID)+"/players/"+url.PathEscape(userID)+"/drop", nil, nil)
	return err
}

// NextRound pairs the next round.
func (c *Client) NextRound(ctx context.Context, tournamentID string) (service.Round, error) {
	var r service.Round
	_, err := c.do(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(tournamentID)+"/rounds", nil, &r)
	return r, err
}

// SubmitReport posts a result. It returns ErrBusy when the service
// applies backpressure.
func (c *Client) SubmitReport(ctx context.Context, tournamentID string, r Report) (AckResponse, error) {
	var ack AckResponse
	status, err := c.do(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(tournamentID)+"/reports", r, &ack)
	switch {
	case status == http.StatusTooManyRequests:
		return ack, fmt.Errorf("%w: %w", ErrBusy, err)
	case err != nil:
		return ack, err
	case status == http.StatusOK:
		ack.Duplicate = true
	}
	return ack, nil
}

// State fetches the tournament progress.
func (c *Client) State(ctx context.Context, tournamentID string) (service.TournamentState, error) {
	var st service.TournamentState
	_, err := c.do(ctx, http.MethodGet, "/tournaments/"+url.PathEscape(tournamentID)+"/state", nil, &st)
	return st, err
}

// Standings fetches the ranked standings.
func (c *Client) Standings(ctx context.Context, tournamentID string) ([]model.PlayerStanding, error) {
	var rows []model.PlayerStanding
	_, err := c.do(ctx, http.MethodGet, "/tournaments/"+url.PathEscape(tournamentID)+"/standings", nil, &rows)
	return rows, err
}

// CanOfferDraw asks whether two players may agree an intentional draw.
func (c *Client) CanOfferDraw(ctx context.Context, tournamentID, a, b string) (bool, error) {
	var out struct {
		Allowed bool `json:"allowed"`
	}
	q := url.Values{"a": {a}, "b": {b}}
	_, err := c.do(ctx, http.MethodGet,
		"/tournaments/"+url.PathEscape(tournamentID)+"/draw-offer?"+q.Encode(), nil, &out)
	return out.Allowed, err
}
