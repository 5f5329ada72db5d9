package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/rally/internal/domain/model"
)

// defaultHTTPTimeout bounds a single delivery attempt.
const defaultHTTPTimeout = 10 * time.Second

// Transport delivers events and reads match state from the server. A non-nil
// error from Deliver means the outcome is unknown and the event stays queued.
type Transport interface {
	Deliver(ctx context.Context, ev model.ScoreEvent) (model.Result, error)
	GetMatch(ctx context.Context, key model.MatchKey) (model.Match, error)
}

// HTTPTransport talks to the settlement server's JSON API.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport for the given server base URL.
func NewHTTPTransport(baseURL string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TransportOption applies a configuration option to the HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// Deliver posts the event and decodes the server's definitive result. Any
// transport failure or non-definitive status is returned as an error so the
// caller keeps the event queued.
func (t *HTTPTransport) Deliver(ctx context.Context, ev model.ScoreEvent) (model.Result, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return model.Result{}, fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return model.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return model.Result{}, fmt.Errorf("deliver event: %w", err)
	}
	defer resp.Body.Close()

	// The server answers 200 for every definitive outcome, including
	// suppressions and stale conflicts. Anything else is indefinite.
	if resp.StatusCode != http.StatusOK {
		return model.Result{}, fmt.Errorf("deliver event: unexpected status %d", resp.StatusCode)
	}

	var res model.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return model.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// CreateMatch registers a match document on the server.
func (t *HTTPTransport) CreateMatch(ctx context.Context, m model.Match) error {
	payload := struct {
		Scope   string           `json:"scope"`
		Index   int              `json:"index"`
		SideA   []string         `json:"side_a"`
		SideB   []string         `json:"side_b"`
		Round   int              `json:"round"`
		Feeders []model.MatchKey `json:"feeders,omitempty"`
	}{
		Scope:   m.Key.Scope,
		Index:   m.Key.Index,
		SideA:   m.SideA.Players,
		SideB:   m.SideB.Players,
		Round:   m.Round,
		Feeders: m.Feeders,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/matches", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create match: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// SetDone flips the done flag on a match.
func (t *HTTPTransport) SetDone(ctx context.Context, key model.MatchKey, done bool) (model.Match, error) {
	body, err := json.Marshal(struct {
		Done bool `json:"done"`
	}{Done: done})
	if err != nil {
		return model.Match{}, fmt.Errorf("encode done: %w", err)
	}

	u := fmt.Sprintf("%s/matches/%s/%d/done", t.baseURL, url.PathEscape(key.Scope), key.Index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return model.Match{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return model.Match{}, fmt.Errorf("set done: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Match{}, fmt.Errorf("set done: unexpected status %d", resp.StatusCode)
	}

	var m model.Match
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return model.Match{}, fmt.Errorf("decode match: %w", err)
	}
	return m, nil
}

// Leaderboard fetches ranked standings.
func (t *HTTPTransport) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	u := fmt.Sprintf("%s/leaderboard?limit=%d", t.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get leaderboard: unexpected status %d", resp.StatusCode)
	}

	var entries []model.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return entries, nil
}

// GetMatch fetches the authoritative state of one match.
func (t *HTTPTransport) GetMatch(ctx context.Context, key model.MatchKey) (model.Match, error) {
	u := fmt.Sprintf("%s/matches/%s/%d", t.baseURL, url.PathEscape(key.Scope), key.Index)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Match{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return model.Match{}, fmt.Errorf("get match: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.Match{}, ErrMatchNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return model.Match{}, fmt.Errorf("get match: unexpected status %d", resp.StatusCode)
	}

	var m model.Match
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return model.Match{}, fmt.Errorf("decode match: %w", err)
	}
	return m, nil
}
