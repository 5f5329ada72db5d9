// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/okian/rally/internal/adapters/ledger"
	transitionqueue "github.com/okian/rally/internal/adapters/mq/queue"
	workerpool "github.com/okian/rally/internal/adapters/mq/worker"
	"github.com/okian/rally/internal/domain/applier"
	"github.com/okian/rally/internal/domain/bracket"
	"github.com/okian/rally/internal/domain/dedupe"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/internal/domain/settle"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

// Service wires the ledger store, event applier, settlement engine and
// bracket machine behind one API surface. Score events apply synchronously
// so callers get a definitive outcome; done-state transitions settle
// asynchronously through the transition queue.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   ledger.Store
	applier *applier.Applier
	settler *settle.Engine
	bracket *bracket.Machine
	deduper dedupe.Deduper
	queue   transitionqueue.Queue
	workers *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	debounceWindow time.Duration
	txnMaxAttempts int

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      10_000,
		dedupeSize:     10_000,
		debounceWindow: applier.DefaultDebounceWindow,
		txnMaxAttempts: 0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting settlement service...")

	if s.store == nil {
		storeOpts := []ledger.Option{}
		if s.txnMaxAttempts > 0 {
			storeOpts = append(storeOpts, ledger.WithMaxTxnAttempts(s.txnMaxAttempts))
		}
		s.store = ledger.NewMemStore(storeOpts...)
		s.logger.Info(ctx, "using in-memory ledger store")
	}

	s.applier = applier.New(s.store, applier.WithDebounceWindow(s.debounceWindow))
	s.settler = settle.New(s.store)
	s.bracket = bracket.New(s.store)
	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = transitionqueue.NewInMemoryQueue(
		transitionqueue.WithCapacity(s.queueSize),
	)

	s.workers = workerpool.NewPool(s.workerCount, s.queue, s.settler, s.bracket)
	s.workers.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "settlement service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("debounce_window", s.debounceWindow),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping settlement service...")

	if s.workers != nil {
		s.workers.Stop()
	}
	if q, ok := s.queue.(*transitionqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "settlement service stopped")
}

// CreateMatch registers a match document. The version starts at zero and the
// slot state is derived from the participants: matches with feeders and
// placeholder sides start pending, everything else starts ready.
func (s *Service) CreateMatch(ctx context.Context, m model.Match) (model.Match, error) {
	if m.Key.Scope == "" {
		return model.Match{}, fmt.Errorf("%w: empty scope", ErrInvalidMatch)
	}
	if m.Slot == "" {
		if len(m.Feeders) > 0 && (m.SideA.IsPlaceholder() || m.SideB.IsPlaceholder()) {
			m.Slot = model.SlotPending
		} else {
			m.Slot = model.SlotReady
		}
	}
	m.ScoreA, m.ScoreB = 0, 0
	m.Version = 0
	m.Done = false
	m.UpdatedAt = time.Now()

	key := ledger.MatchDoc(m.Key)
	err := s.store.Txn(ctx, func(tx ledger.Tx) error {
		if _, exists := tx.Get(key); exists {
			return ErrMatchExists
		}
		tx.Put(key, m)
		return nil
	})
	if err != nil {
		return model.Match{}, err
	}

	s.trackMatches(ctx)
	return m, nil
}

// GetMatch returns the authoritative state of one match.
func (s *Service) GetMatch(ctx context.Context, key model.MatchKey) (model.Match, error) {
	doc, ok, err := s.store.Get(ctx, ledger.MatchDoc(key))
	if err != nil {
		return model.Match{}, err
	}
	if !ok {
		return model.Match{}, ErrMatchNotFound
	}
	m, ok := doc.(model.Match)
	if !ok {
		return model.Match{}, fmt.Errorf("%w: %s", ErrCorruptDocument, key)
	}
	return m, nil
}

// ListMatches returns all matches in a scope ordered by index.
func (s *Service) ListMatches(ctx context.Context, scope string) ([]model.Match, error) {
	var matches []model.Match
	err := s.store.Scan(ctx, ledger.MatchPrefix(scope), func(_ string, doc any) bool {
		if m, ok := doc.(model.Match); ok {
			matches = append(matches, m)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Key.Index < matches[j].Key.Index
	})
	return matches, nil
}

// ApplyEvent runs one score event through the applier and returns its
// definitive outcome. Safe to call any number of times per event.
func (s *Service) ApplyEvent(ctx context.Context, ev model.ScoreEvent) (model.Result, error) {
	return s.applier.Apply(ctx, ev)
}

// SetDone flips the match's done flag. Marking done requires a decided score;
// ties are rejected. The resulting transition is enqueued for settlement and
// duplicate notifications for the same flip are shed before they reach the
// queue.
func (s *Service) SetDone(ctx context.Context, key model.MatchKey, done bool) (model.Match, error) {
	var tr model.Transition
	docKey := ledger.MatchDoc(key)

	err := s.store.Txn(ctx, func(tx ledger.Tx) error {
		doc, ok := tx.Get(docKey)
		if !ok {
			return ErrMatchNotFound
		}
		m, ok := doc.(model.Match)
		if !ok {
			return fmt.Errorf("%w: %s", ErrCorruptDocument, key)
		}
		if m.Done == done {
			tr = model.Transition{}
			return nil
		}
		if done {
			if _, decided := m.Winner(); !decided {
				return ErrTiedScore
			}
		}

		before := m
		m.Done = done
		if done {
			m.Slot = model.SlotDone
		} else if m.Slot == model.SlotDone {
			m.Slot = model.SlotReady
		}
		m.Version++
		m.UpdatedAt = time.Now()
		tx.Put(docKey, m)

		tr = model.Transition{
			ID:     fmt.Sprintf("%s@%d", key, m.Version),
			Before: before,
			After:  m,
		}
		return nil
	})
	if err != nil {
		return model.Match{}, err
	}

	// No-op flips produce no transition.
	if tr.ID == "" {
		return s.GetMatch(ctx, key)
	}

	if s.deduper.SeenAndRecord(ctx, tr.ID) {
		metrics.RecordTransitionDuplicate()
		s.logger.Debug(ctx, "duplicate transition shed",
			logger.String("transition", tr.ID),
		)
		return tr.After, nil
	}

	if !s.queue.Enqueue(ctx, tr) {
		// Give a later retry a chance to enqueue the same transition.
		s.deduper.Unrecord(ctx, tr.ID)
		return model.Match{}, ErrQueueFull
	}
	return tr.After, nil
}

// Leaderboard returns ranked standings, highest wins first, point difference
// breaking ties. The read is eventually consistent with settlement.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	err := s.store.Scan(ctx, ledger.StandingPrefix, func(key string, doc any) bool {
		counters, ok := doc.(ledger.Counters)
		if !ok {
			return true
		}
		playerID := key[len(ledger.StandingPrefix):]
		entries = append(entries, model.EntryFromCounters(playerID, counters))
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Won != entries[j].Won {
			return entries[i].Won > entries[j].Won
		}
		if entries[i].PointDiff != entries[j].PointDiff {
			return entries[i].PointDiff > entries[j].PointDiff
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// AdvanceBracket re-evaluates pending slots in a scope and returns how many
// were advanced. Settlement workers do this automatically; the method exists
// for administrative re-runs.
func (s *Service) AdvanceBracket(ctx context.Context, scope string) (int, error) {
	return s.bracket.AdvanceDependents(ctx, scope)
}

// Stats is a snapshot of queue and store occupancy.
type Stats struct {
	QueueSize   int  `json:"queue_size"`
	QueueCap    int  `json:"queue_capacity"`
	DedupeSize  int  `json:"dedupe_size"`
	StoreDocs   int  `json:"store_docs"`
	WorkerCount int  `json:"worker_count"`
	Started     bool `json:"started"`
}

// GetStats returns current occupancy numbers.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		WorkerCount: s.workerCount,
		QueueCap:    s.queueSize,
		Started:     s.started,
	}
	if s.queue != nil {
		st.QueueSize = s.queue.Len(ctx)
	}
	if s.deduper != nil {
		st.DedupeSize = s.deduper.Size()
	}
	if ms, ok := s.store.(*ledger.MemStore); ok {
		st.StoreDocs = ms.Len()
	}
	return st
}

// trackMatches refreshes the tracked-match gauge, counting match documents.
func (s *Service) trackMatches(ctx context.Context) {
	count := 0
	_ = s.store.Scan(ctx, ledger.MatchRootPrefix, func(string, any) bool {
		count++
		return true
	})
	metrics.UpdateMatchesTracked(count)
}

// IsNotFound reports whether err indicates a missing match.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMatchNotFound)
}
