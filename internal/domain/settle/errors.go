package settle

import "errors"

// Sentinel kinds for settlement errors.
var (
	// ErrTiedScore rejects settling a match whose scores are level; ties are
	// not a valid terminal state.
	ErrTiedScore = errors.New("tied score is not a valid terminal state")
)
