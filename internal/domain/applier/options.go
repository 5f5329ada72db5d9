package applier

import (
	"time"

	"github.com/okian/rally/pkg/logger"
)

// Option applies a configuration option to the Applier.
type Option func(*Applier)

// WithDebounceWindow sets the cross-writer suppression window.
func WithDebounceWindow(d time.Duration) Option {
	return func(a *Applier) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(a *Applier) {
		if log != nil {
			a.log = log
		}
	}
}
