// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/okian/rally/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ApplyEvent runs one score event to a definitive outcome. Safe to
	// re-deliver the same event any number of times.
	ApplyEvent(ctx context.Context, ev model.ScoreEvent) (model.Result, error)

	// Match lifecycle.
	CreateMatch(ctx context.Context, m model.Match) (model.Match, error)
	GetMatch(ctx context.Context, key model.MatchKey) (model.Match, error)
	ListMatches(ctx context.Context, scope string) ([]model.Match, error)
	SetDone(ctx context.Context, key model.MatchKey, done bool) (model.Match, error)
	AdvanceBracket(ctx context.Context, scope string) (int, error)

	// Leaderboard exposes ranked standings.
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	matchesHandler     *MatchesHandler
	leaderboardHandler *LeaderboardHandler

	rateLimit *RateLimiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		matchesHandler:     NewMatchesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, defaultMaxLeaderboardLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithMaxLeaderboardLimit caps the leaderboard page size.
func WithMaxLeaderboardLimit(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.leaderboardHandler.maxLimit = n
		}
	}
}

// WithRateLimiter enables request rate limiting on write endpoints.
func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) {
		s.rateLimit = rl
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	limited := func(next http.HandlerFunc) http.HandlerFunc {
		if s.rateLimit == nil {
			return next
		}
		return s.rateLimit.Middleware(next)
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(limited(s.eventsHandler.HandlePostEvent), "events"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/matches", MetricsMiddleware(limited(s.matchesHandler.HandleMatches), "matches"))
	mux.HandleFunc("/matches/", MetricsMiddleware(limited(s.matchesHandler.HandleMatch), "match"))
}

// eventRequest mirrors the JSON schema for POST /events.
type eventRequest struct {
	ClientEventID   string `json:"client_event_id"`
	Scope           string `json:"scope"`
	Index           int    `json:"index"`
	Side            string `json:"side"`
	Delta           int    `json:"delta"`
	NextScore       int    `json:"next_score"`
	ExpectedVersion int64  `json:"expected_version"`
	SourceID        string `json:"source_id"`
	Timestamp       string `json:"timestamp"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.ClientEventID) == "":
		return NewKind("api.post_event", ErrBadRequest)
	case strings.TrimSpace(e.Scope) == "":
		return NewKind("api.post_event", ErrBadRequest)
	case strings.TrimSpace(e.SourceID) == "":
		return NewKind("api.post_event", ErrBadRequest)
	case !model.Side(e.Side).Valid():
		return NewKind("api.post_event", ErrBadRequest)
	case e.Delta != 1 && e.Delta != -1:
		return NewKind("api.post_event", ErrBadRequest)
	case strings.TrimSpace(e.Timestamp) == "":
		return NewKind("api.post_event", ErrBadRequest)
	}
	if _, err := time.Parse(time.RFC3339Nano, e.Timestamp); err != nil {
		return WrapKind("api.post_event", ErrBadRequest, err)
	}
	return nil
}

func (e eventRequest) toModel() model.ScoreEvent {
	ts, _ := time.Parse(time.RFC3339Nano, e.Timestamp)
	return model.ScoreEvent{
		ClientEventID:   e.ClientEventID,
		Scope:           e.Scope,
		Index:           e.Index,
		Side:            model.Side(e.Side),
		Delta:           e.Delta,
		NextScore:       e.NextScore,
		ExpectedVersion: e.ExpectedVersion,
		SourceID:        e.SourceID,
		Timestamp:       ts,
	}
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
