// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/rally/internal/domain/model"
)

// MatchDependencies defines the interface for match lifecycle operations.
type MatchDependencies interface {
	CreateMatch(ctx context.Context, m model.Match) (model.Match, error)
	GetMatch(ctx context.Context, key model.MatchKey) (model.Match, error)
	ListMatches(ctx context.Context, scope string) ([]model.Match, error)
	SetDone(ctx context.Context, key model.MatchKey, done bool) (model.Match, error)
	AdvanceBracket(ctx context.Context, scope string) (int, error)
}

// MatchesHandler handles match lifecycle requests.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// createMatchRequest mirrors the JSON schema for POST /matches.
type createMatchRequest struct {
	Scope   string     `json:"scope"`
	Index   int        `json:"index"`
	SideA   []string   `json:"side_a"`
	SideB   []string   `json:"side_b"`
	Round   int        `json:"round"`
	Feeders []matchRef `json:"feeders"`
}

type matchRef struct {
	Scope string `json:"scope"`
	Index int    `json:"index"`
}

type doneRequest struct {
	Done bool `json:"done"`
}

type advanceResponse struct {
	Advanced int `json:"advanced"`
}

// HandleMatches handles /matches: POST creates, GET lists by scope.
func (h *MatchesHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	const op = "api.matches"
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		scope := r.URL.Query().Get("scope")
		if scope == "" {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		matches, err := h.deps.ListMatches(r.Context(), scope)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, matches)
	default:
		http.NotFound(w, r)
	}
}

// HandleMatch handles /matches/{scope}/{index} and its sub-resources:
//
//	GET  /matches/{scope}/{index}        match state
//	POST /matches/{scope}/{index}/done   flip the done flag
//	POST /matches/{scope}/advance        re-evaluate pending bracket slots
func (h *MatchesHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.match"

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/matches/"), "/"), "/")
	switch {
	case len(parts) == 2 && parts[1] == "advance" && r.Method == http.MethodPost:
		n, err := h.deps.AdvanceBracket(r.Context(), parts[0])
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, advanceResponse{Advanced: n})
		return

	case len(parts) == 2 && r.Method == http.MethodGet:
		key, ok := parseKey(parts)
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		m, err := h.deps.GetMatch(r.Context(), key)
		if err != nil {
			h.writeMatchError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
		return

	case len(parts) == 3 && parts[2] == "done" && r.Method == http.MethodPost:
		key, ok := parseKey(parts[:2])
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		var req doneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		m, err := h.deps.SetDone(r.Context(), key, req.Done)
		if err != nil {
			h.writeMatchError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
		return
	}

	http.NotFound(w, r)
}

func (h *MatchesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_match"

	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Scope) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	m := model.Match{
		Key:   model.MatchKey{Scope: req.Scope, Index: req.Index},
		SideA: model.Participant{Players: req.SideA},
		SideB: model.Participant{Players: req.SideB},
		Round: req.Round,
	}
	for _, f := range req.Feeders {
		m.Feeders = append(m.Feeders, model.MatchKey{Scope: f.Scope, Index: f.Index})
	}

	created, err := h.deps.CreateMatch(r.Context(), m)
	if err != nil {
		if isConflict(err) {
			writeError(w, http.StatusConflict, "conflict", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *MatchesHandler) writeMatchError(w http.ResponseWriter, op string, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case isConflict(err):
		writeError(w, http.StatusConflict, "conflict", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

func parseKey(parts []string) (model.MatchKey, bool) {
	idx, err := strconv.Atoi(parts[1])
	if err != nil || parts[0] == "" {
		return model.MatchKey{}, false
	}
	return model.MatchKey{Scope: parts[0], Index: idx}, true
}

// isNotFound allows the API to translate upstream not-found errors to 404
// without importing the service package.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// isConflict recognizes already-exists and tied-score rejections.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "tied")
}
