package client

import (
	"time"

	"github.com/okian/rally/internal/client/outbox"
	"github.com/okian/rally/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithOutboxCapacity bounds the number of events queued for delivery.
func WithOutboxCapacity(n int) Option {
	return func(c *Client) {
		c.outboxOpts = append(c.outboxOpts, outbox.WithCapacity(n))
	}
}
