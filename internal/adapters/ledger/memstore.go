package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/rally/pkg/metrics"
)

// Default MemStore configuration constants.
const (
	defaultMaxTxnAttempts = 16
	retryBackoffStep      = 250 * time.Microsecond
)

// MemStore implements Store in memory with per-document versioned entries.
// A transaction records the version of every document it reads; commit
// verifies those versions under the write lock and re-runs the body when a
// concurrent commit won the race. Unrelated documents never contend beyond
// the map lock itself.
type MemStore struct {
	mu             sync.RWMutex
	docs           map[string]*memEntry
	maxTxnAttempts int
}

type memEntry struct {
	doc any
	rev uint64
}

// NewMemStore creates an in-memory store with configuration options.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		docs:           make(map[string]*memEntry),
		maxTxnAttempts: defaultMaxTxnAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a snapshot read of one document.
func (s *MemStore) Get(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("ledger get: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	return cloneDoc(e.doc), true, nil
}

// Scan visits documents under prefix in key order.
func (s *MemStore) Scan(ctx context.Context, prefix string, fn func(key string, doc any) bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ledger scan: %w", err)
	}
	s.mu.RLock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	snapshot := make([]any, len(keys))
	for i, k := range keys {
		snapshot[i] = cloneDoc(s.docs[k].doc)
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if !fn(k, snapshot[i]) {
			return nil
		}
	}
	return nil
}

// Txn runs fn with optimistic concurrency and automatic retry on conflict.
func (s *MemStore) Txn(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 1; attempt <= s.maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ledger txn: %w", err)
		}

		tx := &memTx{
			store:   s,
			reads:   make(map[string]uint64),
			writes:  make(map[string]any),
			deletes: make(map[string]bool),
		}
		if err := fn(tx); err != nil {
			return err
		}
		if s.commit(tx) {
			return nil
		}

		metrics.RecordTxnConflict()
		if attempt < s.maxTxnAttempts {
			metrics.RecordTxnRetry()
			time.Sleep(time.Duration(attempt) * retryBackoffStep)
		}
	}
	return fmt.Errorf("ledger txn after %d attempts: %w", s.maxTxnAttempts, ErrTxnConflict)
}

// commit validates read versions and applies buffered writes atomically.
func (s *MemStore) commit(tx *memTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, rev := range tx.reads {
		cur := uint64(0)
		if e, ok := s.docs[key]; ok {
			cur = e.rev
		}
		if cur != rev {
			return false
		}
	}

	for key, doc := range tx.writes {
		e, ok := s.docs[key]
		if !ok {
			e = &memEntry{}
			s.docs[key] = e
		}
		e.doc = cloneDoc(doc)
		e.rev++
	}
	for key := range tx.deletes {
		delete(s.docs, key)
	}
	return true
}

// Increment atomically adds delta to one counter field. Counter documents
// are owned by the store, so this bypasses the transaction machinery: the
// operation commutes and can never need a retry.
func (s *MemStore) Increment(ctx context.Context, key, field string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ledger increment: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.docs[key]
	if !ok {
		e = &memEntry{doc: Counters{}}
		s.docs[key] = e
	}
	c, ok := e.doc.(Counters)
	if !ok {
		return fmt.Errorf("increment %q: %w", key, ErrNotCounters)
	}
	c[field] += delta
	e.rev++
	return nil
}

// Len returns the number of documents held.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// memTx buffers one transaction's reads and writes.
type memTx struct {
	store   *MemStore
	reads   map[string]uint64
	writes  map[string]any
	deletes map[string]bool
}

// Get serves from the write buffer first, then the store, recording the
// version seen so commit can detect conflicting writers.
func (t *memTx) Get(key string) (any, bool) {
	if doc, ok := t.writes[key]; ok {
		return cloneDoc(doc), true
	}
	if t.deletes[key] {
		return nil, false
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	e, ok := t.store.docs[key]
	if !ok {
		t.reads[key] = 0
		return nil, false
	}
	t.reads[key] = e.rev
	return cloneDoc(e.doc), true
}

// Put buffers a write.
func (t *memTx) Put(key string, doc any) {
	delete(t.deletes, key)
	t.writes[key] = doc
}

// Delete buffers a removal.
func (t *memTx) Delete(key string) {
	delete(t.writes, key)
	t.deletes[key] = true
}

// cloneDoc copies reference-typed documents so callers never alias store
// internals. Struct documents are stored and returned by value already.
func cloneDoc(doc any) any {
	if c, ok := doc.(Counters); ok {
		return c.Clone()
	}
	return doc
}
