package service

import "errors"

var (
	// ErrMatchNotFound indicates no match document exists for the key.
	ErrMatchNotFound = errors.New("service: match not found")

	// ErrMatchExists indicates a match was already created for the key.
	ErrMatchExists = errors.New("service: match already exists")

	// ErrInvalidMatch indicates the match payload failed validation.
	ErrInvalidMatch = errors.New("service: invalid match")

	// ErrTiedScore indicates a match cannot be marked done at a level score.
	ErrTiedScore = errors.New("service: match is tied")

	// ErrCorruptDocument indicates a ledger document of an unexpected type.
	ErrCorruptDocument = errors.New("service: corrupt document")

	// ErrQueueFull indicates the transition queue rejected an enqueue.
	ErrQueueFull = errors.New("service: transition queue full")
)
