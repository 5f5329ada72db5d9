// Package bracket advances knockout-bracket slots once their prerequisite
// matches are confirmed done.
//
// A dependent match starts pending with feeder match keys. The pending→ready
// transition fires only when every feeder is done; the winner of each feeder
// is projected into the dependent match's participant slots. Re-evaluating a
// slot that already has real participants never overwrites it.
package bracket

import (
	"context"
	"fmt"

	"github.com/okian/rally/internal/adapters/ledger"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

// feederCount is the number of prerequisite matches a dependent slot carries.
const feederCount = 2

// Machine evaluates bracket advancement against the ledger.
type Machine struct {
	store ledger.Store
	log   logger.Logger
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates a bracket machine.
func New(store ledger.Store, opts ...Option) *Machine {
	m := &Machine{
		store: store,
		log:   logger.Named("bracket"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AdvanceDependents re-evaluates every pending dependent match in scope and
// returns how many slots were promoted to ready.
func (m *Machine) AdvanceDependents(ctx context.Context, scope string) (int, error) {
	var pending []model.MatchKey
	err := m.store.Scan(ctx, ledger.MatchPrefix(scope), func(_ string, doc any) bool {
		match, ok := doc.(model.Match)
		if !ok {
			return true
		}
		if match.Slot == model.SlotPending && len(match.Feeders) > 0 {
			pending = append(pending, match.Key)
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("advance scope %s: %w", scope, err)
	}

	advanced := 0
	for _, key := range pending {
		ok, err := m.Evaluate(ctx, key)
		if err != nil {
			return advanced, err
		}
		if ok {
			advanced++
		}
	}
	return advanced, nil
}

// Evaluate fires the pending→ready transition for one dependent match when
// all of its feeders are done. Returns true when the slot advanced.
func (m *Machine) Evaluate(ctx context.Context, key model.MatchKey) (bool, error) {
	advanced := false
	err := m.store.Txn(ctx, func(tx ledger.Tx) error {
		advanced = false

		doc, ok := tx.Get(ledger.MatchDoc(key))
		if !ok {
			return fmt.Errorf("evaluate %s: %w", key, ErrMatchNotFound)
		}
		dependent := doc.(model.Match)

		if dependent.Slot != model.SlotPending {
			return nil
		}
		// Real participants mean a previous evaluation already projected the
		// winners; never re-derive over them.
		if !dependent.SideA.IsPlaceholder() || !dependent.SideB.IsPlaceholder() {
			return nil
		}
		if len(dependent.Feeders) != feederCount {
			return fmt.Errorf("evaluate %s: %w: %d feeders", key, ErrBadFeeders, len(dependent.Feeders))
		}

		winners := make([]model.Participant, 0, feederCount)
		for _, feederKey := range dependent.Feeders {
			fdoc, ok := tx.Get(ledger.MatchDoc(feederKey))
			if !ok {
				return fmt.Errorf("evaluate %s: feeder %s: %w", key, feederKey, ErrMatchNotFound)
			}
			feeder := fdoc.(model.Match)
			if !feeder.Done {
				return nil
			}
			winner, ok := feeder.Winner()
			if !ok {
				return fmt.Errorf("evaluate %s: feeder %s: %w", key, feederKey, ErrTiedFeeder)
			}
			winners = append(winners, winner)
		}

		dependent.SideA = winners[0]
		dependent.SideB = winners[1]
		dependent.Slot = model.SlotReady
		dependent.Version++
		tx.Put(ledger.MatchDoc(key), dependent)
		advanced = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if advanced {
		metrics.RecordSlotAdvanced()
		m.log.Info(ctx, "slot advanced", logger.String("match", key.String()))
	}
	return advanced, nil
}
