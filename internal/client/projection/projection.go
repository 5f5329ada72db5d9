// Package projection keeps the client's optimistic view of match scores. A
// tap moves the local shadow score immediately; the shadow is reconciled away
// only once the server confirms the same value, so the UI never snaps
// backwards while events are still in flight.
package projection

import (
	"sync"

	"github.com/google/uuid"

	"github.com/okian/rally/internal/domain/model"
)

// sideView is the optimistic state for one side of one match.
type sideView struct {
	shadow        int
	shadowActive  bool
	serverScore   int
	serverVersion int64
}

// Projection tracks shadow scores for the matches a client is editing.
type Projection struct {
	mu       sync.Mutex
	views    map[viewKey]*sideView
	sourceID string
}

type viewKey struct {
	match model.MatchKey
	side  model.Side
}

// New creates a projection owned by the given writer source.
func New(sourceID string) *Projection {
	return &Projection{
		views:    make(map[viewKey]*sideView),
		sourceID: sourceID,
	}
}

// Score returns the value the UI should display: the shadow when one is
// active, otherwise the last score confirmed by the server.
func (p *Projection) Score(key model.MatchKey, side model.Side) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.views[viewKey{match: key, side: side}]
	if !ok {
		return 0
	}
	if v.shadowActive {
		return v.shadow
	}
	return v.serverScore
}

// Version returns the last server version observed for the match side's
// match. Zero means the match has never been observed.
func (p *Projection) Version(key model.MatchKey, side model.Side) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.views[viewKey{match: key, side: side}]
	if !ok {
		return 0
	}
	return v.serverVersion
}

// Tap applies one increment or decrement locally and returns the event to
// send. The shadow never goes below zero; a decrement at zero still produces
// an event so the server can arbitrate, with NextScore clamped at zero.
func (p *Projection) Tap(key model.MatchKey, side model.Side, delta int) model.ScoreEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.view(key, side)
	base := v.serverScore
	if v.shadowActive {
		base = v.shadow
	}

	next := base + delta
	if next < 0 {
		next = 0
	}
	v.shadow = next
	v.shadowActive = true

	return model.ScoreEvent{
		ClientEventID:   uuid.NewString(),
		Scope:           key.Scope,
		Index:           key.Index,
		Side:            side,
		Delta:           delta,
		NextScore:       next,
		ExpectedVersion: v.serverVersion,
		SourceID:        p.sourceID,
	}
}

// Observe folds a server-confirmed match state into the projection. The
// shadow for a side is dropped only when the server has caught up to it;
// until then the optimistic value keeps winning locally.
func (p *Projection) Observe(m model.Match) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, side := range []model.Side{model.SideA, model.SideB} {
		v := p.view(m.Key, side)
		score := m.Score(side)
		v.serverScore = score
		v.serverVersion = m.Version

		if v.shadowActive && v.shadow == score {
			v.shadowActive = false
		}
	}
}

// Reset discards all shadow state, falling back to server scores.
func (p *Projection) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range p.views {
		v.shadowActive = false
	}
}

func (p *Projection) view(key model.MatchKey, side model.Side) *sideView {
	k := viewKey{match: key, side: side}
	v, ok := p.views[k]
	if !ok {
		v = &sideView{}
		p.views[k] = v
	}
	return v
}
