package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	// ErrTxnConflict is returned when a transaction keeps losing the
	// write-write race past the retry budget.
	ErrTxnConflict = errors.New("transaction conflict")

	// ErrNotCounters is returned when Increment targets a document that is
	// not a Counters value.
	ErrNotCounters = errors.New("document does not hold counters")
)
