// Package applier turns one score intent into at most one match state change.
//
// Apply runs a single ledger transaction scoped to the target match, its
// application marker, its dedupe record, and the event's own record. The
// decision is a pure function of those reads, so the store may re-execute it
// on write conflicts. Every event ends in a recorded terminal outcome;
// nothing escapes the boundary as an unhandled failure.
package applier

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/rally/internal/adapters/ledger"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

// DefaultDebounceWindow is the cross-writer suppression window. Empirically
// chosen; treat as policy, not an invariant.
const DefaultDebounceWindow = 650 * time.Millisecond

// Applier applies score events against the ledger.
type Applier struct {
	store  ledger.Store
	window time.Duration
	now    func() time.Time
	log    logger.Logger
}

// New creates an Applier with configuration options.
func New(store ledger.Store, opts ...Option) *Applier {
	a := &Applier{
		store:  store,
		window: DefaultDebounceWindow,
		now:    time.Now,
		log:    logger.Named("applier"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply decides and records the outcome of one score event. Re-delivery of
// an already-processed event returns the originally recorded result.
func (a *Applier) Apply(ctx context.Context, ev model.ScoreEvent) (model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordApplyLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := validate(ev); err != nil {
		return model.Result{}, err
	}

	var res model.Result
	err := a.store.Txn(ctx, func(tx ledger.Tx) error {
		res = a.decide(tx, ev)
		return nil
	})
	if err != nil {
		return model.Result{}, fmt.Errorf("apply event %s: %w", ev.ClientEventID, err)
	}

	if res.Replay {
		metrics.RecordEventReplay()
	} else {
		metrics.RecordEventOutcome(string(res.Outcome))
	}
	a.log.Debug(ctx, "event decided",
		logger.String("eventID", ev.ClientEventID),
		logger.String("outcome", string(res.Outcome)),
		logger.Bool("replay", res.Replay),
		logger.Int("score", res.Score),
		logger.Int64("version", res.Version),
	)
	return res, nil
}

// decide is the transaction body. It must stay free of side effects outside
// tx so the store can re-run it on conflict.
func (a *Applier) decide(tx ledger.Tx, ev model.ScoreEvent) model.Result {
	key := ev.Key()
	markerKey := ledger.MarkerDoc(key, ev.ClientEventID)

	// Idempotent replay: a marker means this event already reached a
	// terminal state.
	if doc, ok := tx.Get(markerKey); ok {
		marker := doc.(model.ApplicationMarker)
		return model.Result{
			EventID: ev.ClientEventID,
			Outcome: marker.Outcome,
			Score:   marker.Score,
			Version: marker.Version,
			Replay:  true,
		}
	}

	match, matchExists := a.loadMatch(tx, key)

	// Cross-admin debounce: the same admin may tap rapidly, but two
	// different writers racing on the same button within the window
	// collapse to one effect.
	if a.debounced(tx, ev) {
		return a.finish(tx, ev, match, matchExists, model.OutcomeSuppressedDuplicate, false)
	}

	if !matchExists {
		return a.finish(tx, ev, match, false, model.OutcomeMatchNotFound, false)
	}

	if ev.Sign() > 0 {
		match.SetScore(ev.Side, match.Score(ev.Side)+1)
		match.Version++
		return a.finish(tx, ev, match, true, model.OutcomeApplied, true)
	}

	// Corrections are conditional absolute sets: a writer whose view of the
	// match is stale must not blindly overwrite it.
	if ev.ExpectedVersion != match.Version {
		return a.finish(tx, ev, match, true, model.OutcomeStaleConflict, false)
	}
	next := ev.NextScore
	if next < 0 {
		next = 0
	}
	match.SetScore(ev.Side, next)
	match.Version++
	return a.finish(tx, ev, match, true, model.OutcomeApplied, true)
}

// debounced reports whether a different writer hit the same action key
// within the suppression window.
func (a *Applier) debounced(tx ledger.Tx, ev model.ScoreEvent) bool {
	doc, ok := tx.Get(ledger.DedupeDoc(ev.Action()))
	if !ok {
		return false
	}
	rec := doc.(model.DedupeRecord)
	if rec.SourceID == ev.SourceID {
		return false
	}
	gap := ev.Timestamp.Sub(rec.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	return gap <= a.window
}

// finish records the terminal outcome: marker always, match mutation and a
// fresh dedupe record only when the event applied, and the outcome reflected
// onto the event's own record in every branch.
func (a *Applier) finish(tx ledger.Tx, ev model.ScoreEvent, match model.Match, matchExists bool, outcome model.Outcome, applied bool) model.Result {
	now := a.now()

	if applied {
		match.UpdatedAt = now
		tx.Put(ledger.MatchDoc(match.Key), match)
		tx.Put(ledger.DedupeDoc(ev.Action()), model.DedupeRecord{
			SourceID:  ev.SourceID,
			Timestamp: ev.Timestamp,
		})
	}

	score, version := 0, int64(0)
	if matchExists {
		score = match.Score(ev.Side)
		version = match.Version
	}

	tx.Put(ledger.MarkerDoc(ev.Key(), ev.ClientEventID), model.ApplicationMarker{
		EventID:    ev.ClientEventID,
		Outcome:    outcome,
		Score:      score,
		Version:    version,
		RecordedAt: now,
	})
	tx.Put(ledger.EventDoc(ev.Scope, ev.ClientEventID), model.EventRecord{
		Event:      ev,
		Outcome:    outcome,
		RecordedAt: now,
	})

	return model.Result{
		EventID: ev.ClientEventID,
		Outcome: outcome,
		Score:   score,
		Version: version,
	}
}

func (a *Applier) loadMatch(tx ledger.Tx, key model.MatchKey) (model.Match, bool) {
	doc, ok := tx.Get(ledger.MatchDoc(key))
	if !ok {
		return model.Match{}, false
	}
	return doc.(model.Match), true
}

func validate(ev model.ScoreEvent) error {
	switch {
	case ev.ClientEventID == "":
		return fmt.Errorf("%w: missing client event id", ErrInvalidEvent)
	case ev.SourceID == "":
		return fmt.Errorf("%w: missing source id", ErrInvalidEvent)
	case ev.Scope == "":
		return fmt.Errorf("%w: missing scope", ErrInvalidEvent)
	case !ev.Side.Valid():
		return fmt.Errorf("%w: unknown side %q", ErrInvalidEvent, ev.Side)
	case ev.Delta != 1 && ev.Delta != -1:
		return fmt.Errorf("%w: delta must be +1 or -1, got %d", ErrInvalidEvent, ev.Delta)
	case ev.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	return nil
}
