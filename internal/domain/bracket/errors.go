package bracket

import "errors"

// Sentinel kinds for bracket errors.
var (
	ErrMatchNotFound = errors.New("match not found")
	ErrBadFeeders    = errors.New("dependent match needs exactly two feeders")
	ErrTiedFeeder    = errors.New("feeder match finished tied")
)
