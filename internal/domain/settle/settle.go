// Package settle folds completed match outcomes into global per-player
// standings exactly once, and reverses them exactly once when a completion
// is retracted.
package settle

import (
	"context"
	"fmt"

	"github.com/okian/rally/internal/adapters/ledger"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

// Engine applies and reverses settlements against the ledger.
type Engine struct {
	store ledger.Store
	log   logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates a settlement engine.
func New(store ledger.Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   logger.Named("settle"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settle consumes one done-state transition. The applied snapshot is chosen
// deterministically: the post-transition state when applying and the
// pre-transition state when reversing, so a flip-flop reverses exactly what
// was applied. Transitions without a done-state change are no-ops.
func (e *Engine) Settle(ctx context.Context, tr model.Transition) error {
	switch {
	case tr.Completed():
		return e.apply(ctx, tr.After)
	case tr.Reverted():
		return e.reverse(ctx, tr.Before)
	default:
		return nil
	}
}

// apply folds the match outcome in. The marker check-and-set is the
// exactly-once gate; standings themselves are mutated only through
// commutative increments, so settlements of unrelated matches never
// serialize against each other.
func (e *Engine) apply(ctx context.Context, m model.Match) error {
	if m.ScoreA == m.ScoreB {
		return fmt.Errorf("settle %s: %w", m.Key, ErrTiedScore)
	}

	markerKey := ledger.SettlementDoc(m.Key, model.SettleApply)
	created := false
	err := e.store.Txn(ctx, func(tx ledger.Tx) error {
		created = false
		if _, ok := tx.Get(markerKey); ok {
			return nil
		}
		tx.Put(markerKey, model.SettlementMarker{
			Match:     m.Key,
			Direction: string(model.SettleApply),
			Version:   m.Version,
		})
		created = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("settle %s: %w", m.Key, err)
	}
	if !created {
		e.log.Debug(ctx, "settlement already applied", logger.String("match", m.Key.String()))
		return nil
	}

	if err := e.increment(ctx, Deltas(m), false); err != nil {
		// Partial success is the only state needing explicit compensation:
		// roll the marker back so a retried notification re-attempts cleanly.
		e.rollbackMarker(ctx, markerKey)
		metrics.RecordSettlementFailure()
		return fmt.Errorf("settle %s: %w", m.Key, err)
	}

	metrics.RecordSettlementApplied()
	e.log.Info(ctx, "settlement applied",
		logger.String("match", m.Key.String()),
		logger.Int("scoreA", m.ScoreA),
		logger.Int("scoreB", m.ScoreB),
	)
	return nil
}

// reverse backs the match outcome out using the pre-transition snapshot.
// Without a marker there is nothing to reverse; deleting it allows an
// idempotent re-application if the match is later completed again.
func (e *Engine) reverse(ctx context.Context, m model.Match) error {
	markerKey := ledger.SettlementDoc(m.Key, model.SettleApply)
	var marker model.SettlementMarker
	removed := false
	err := e.store.Txn(ctx, func(tx ledger.Tx) error {
		removed = false
		doc, ok := tx.Get(markerKey)
		if !ok {
			return nil
		}
		marker = doc.(model.SettlementMarker)
		tx.Delete(markerKey)
		removed = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("reverse %s: %w", m.Key, err)
	}
	if !removed {
		e.log.Debug(ctx, "nothing to reverse", logger.String("match", m.Key.String()))
		return nil
	}

	if err := e.increment(ctx, Deltas(m), true); err != nil {
		e.restoreMarker(ctx, markerKey, marker)
		metrics.RecordSettlementFailure()
		return fmt.Errorf("reverse %s: %w", m.Key, err)
	}

	metrics.RecordSettlementReversed()
	e.log.Info(ctx, "settlement reversed", logger.String("match", m.Key.String()))
	return nil
}

// appliedInc remembers one landed increment so a partial failure can be
// compensated.
type appliedInc struct {
	key   string
	field string
	v     int64
}

// increment pushes each player's delta through the store's commutative
// primitive, negated when reversing. Fields are visited in a fixed order so
// failures are deterministic. On failure every increment that already landed
// is decremented back before the error surfaces.
func (e *Engine) increment(ctx context.Context, deltas []model.StatDelta, negate bool) error {
	var applied []appliedInc
	for _, d := range deltas {
		if negate {
			d = d.Negated()
		}
		for _, field := range model.StatFields() {
			v := d.Fields[field]
			if v == 0 {
				continue
			}
			key := ledger.StandingDoc(d.PlayerID)
			if err := e.store.Increment(ctx, key, field, v); err != nil {
				e.compensate(ctx, applied)
				return fmt.Errorf("increment %s %s: %w", d.PlayerID, field, err)
			}
			applied = append(applied, appliedInc{key: key, field: field, v: v})
		}
	}
	return nil
}

// compensate backs out landed increments newest-first. A failed compensation
// is logged and skipped; the increments commute, so order does not matter
// for correctness, only for debuggability.
func (e *Engine) compensate(ctx context.Context, applied []appliedInc) {
	for i := len(applied) - 1; i >= 0; i-- {
		inc := applied[i]
		if err := e.store.Increment(ctx, inc.key, inc.field, -inc.v); err != nil {
			e.log.Error(ctx, "settlement compensation failed",
				logger.String("key", inc.key),
				logger.String("field", inc.field),
				logger.Error(err),
			)
		}
	}
}

func (e *Engine) rollbackMarker(ctx context.Context, markerKey string) {
	err := e.store.Txn(ctx, func(tx ledger.Tx) error {
		tx.Delete(markerKey)
		return nil
	})
	if err != nil {
		e.log.Error(ctx, "settlement marker rollback failed", logger.Error(err))
	}
}

func (e *Engine) restoreMarker(ctx context.Context, markerKey string, marker model.SettlementMarker) {
	err := e.store.Txn(ctx, func(tx ledger.Tx) error {
		tx.Put(markerKey, marker)
		return nil
	})
	if err != nil {
		e.log.Error(ctx, "settlement marker restore failed", logger.Error(err))
	}
}
