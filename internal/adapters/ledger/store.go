// Package ledger defines the transactional document store the core is
// written against: per-document optimistic transactions with automatic retry
// on write-write conflict, plus a standalone commutative increment primitive.
package ledger

import "context"

// Tx is the view a transaction body operates on. Reads are recorded so the
// commit can detect write-write conflicts; writes stay buffered until commit.
type Tx interface {
	// Get returns the document at key, or ok=false when absent.
	Get(key string) (any, bool)

	// Put buffers a write of doc at key.
	Put(key string, doc any)

	// Delete buffers a removal of key.
	Delete(key string)
}

// Store provides read access, transactions, and commutative counters.
type Store interface {
	// Get returns a snapshot read of one document.
	Get(ctx context.Context, key string) (any, bool, error)

	// Scan visits documents whose key starts with prefix, in key order,
	// until fn returns false.
	Scan(ctx context.Context, prefix string, fn func(key string, doc any) bool) error

	// Txn runs fn with all-or-nothing semantics. The body must be a pure
	// function of its reads: it is re-executed automatically when another
	// transaction commits a conflicting write first.
	Txn(ctx context.Context, fn func(tx Tx) error) error

	// Increment atomically adds delta to one field of the Counters document
	// at key, creating the document when absent. Increments commute, so they
	// never conflict with each other.
	Increment(ctx context.Context, key string, field string, delta int64) error
}

// Counters is the document shape the Increment primitive operates on.
type Counters map[string]int64

// Clone returns an independent copy.
func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
