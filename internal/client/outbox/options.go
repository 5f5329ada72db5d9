package outbox

import (
	"time"

	"github.com/okian/rally/pkg/logger"
)

// Option applies a configuration option to the Outbox.
type Option func(*Outbox)

// WithCapacity bounds the number of pending entries. Zero or negative means
// unbounded.
func WithCapacity(n int) Option {
	return func(o *Outbox) {
		o.capacity = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Outbox) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Outbox) {
		if log != nil {
			o.log = log
		}
	}
}
