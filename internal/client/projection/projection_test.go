package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/okian/rally/internal/domain/model"
)

var key = model.MatchKey{Scope: "court-1", Index: 0}

func serverMatch(scoreA, scoreB int, version int64) model.Match {
	return model.Match{
		Key:     key,
		ScoreA:  scoreA,
		ScoreB:  scoreB,
		Version: version,
	}
}

func TestTap_MovesShadowImmediately(t *testing.T) {
	p := New("dev-1")

	ev := p.Tap(key, model.SideA, +1)

	assert.Equal(t, 1, p.Score(key, model.SideA))
	assert.Equal(t, 1, ev.NextScore)
	assert.Equal(t, +1, ev.Delta)
	assert.Equal(t, "dev-1", ev.SourceID)
	assert.NotEmpty(t, ev.ClientEventID)

	p.Tap(key, model.SideA, +1)
	assert.Equal(t, 2, p.Score(key, model.SideA))
}

func TestTap_FloorsAtZero(t *testing.T) {
	p := New("dev-1")

	ev := p.Tap(key, model.SideA, -1)

	assert.Equal(t, 0, p.Score(key, model.SideA))
	assert.Equal(t, 0, ev.NextScore, "decrement at zero still emits an event for the server to arbitrate")
}

func TestTap_CarriesObservedVersion(t *testing.T) {
	p := New("dev-1")
	p.Observe(serverMatch(3, 0, 3))

	ev := p.Tap(key, model.SideA, -1)

	assert.Equal(t, int64(3), ev.ExpectedVersion)
	assert.Equal(t, 2, ev.NextScore, "correction proposes the absolute next score")
}

func TestObserve_DropsShadowOnlyWhenConfirmed(t *testing.T) {
	p := New("dev-1")

	p.Tap(key, model.SideA, +1)
	p.Tap(key, model.SideA, +1)
	assert.Equal(t, 2, p.Score(key, model.SideA))

	// The server has only caught up to the first tap; the optimistic value
	// keeps winning locally.
	p.Observe(serverMatch(1, 0, 1))
	assert.Equal(t, 2, p.Score(key, model.SideA))

	// Fully confirmed; fall back to server truth.
	p.Observe(serverMatch(2, 0, 2))
	assert.Equal(t, 2, p.Score(key, model.SideA))

	// A later server-side correction now shows through.
	p.Observe(serverMatch(1, 0, 3))
	assert.Equal(t, 1, p.Score(key, model.SideA))
}

func TestObserve_TracksBothSides(t *testing.T) {
	p := New("dev-1")

	p.Observe(serverMatch(4, 7, 11))

	assert.Equal(t, 4, p.Score(key, model.SideA))
	assert.Equal(t, 7, p.Score(key, model.SideB))
	assert.Equal(t, int64(11), p.Version(key, model.SideA))
}

func TestReset_DiscardsShadows(t *testing.T) {
	p := New("dev-1")
	p.Observe(serverMatch(3, 0, 3))
	p.Tap(key, model.SideA, +1)
	assert.Equal(t, 4, p.Score(key, model.SideA))

	p.Reset()

	assert.Equal(t, 3, p.Score(key, model.SideA), "reset falls back to server score")
}

func TestTap_UniqueEventIDs(t *testing.T) {
	p := New("dev-1")

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ev := p.Tap(key, model.SideA, +1)
		assert.False(t, seen[ev.ClientEventID], "event ids must be unique")
		seen[ev.ClientEventID] = true
	}
}
