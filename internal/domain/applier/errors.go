package applier

import "errors"

// Sentinel kinds for applier errors. Malformed input is the only condition
// reported as an error; every well-formed event ends in a recorded outcome.
var (
	ErrInvalidEvent = errors.New("invalid score event")
)
