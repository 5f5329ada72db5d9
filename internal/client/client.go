// Package client is the writer-side of the score pipeline: an optimistic
// projection for instant UI feedback, a durable outbox for offline taps, and
// an HTTP transport that replays the outbox until every event has a
// definitive server outcome.
package client

import (
	"context"
	"time"

	"github.com/okian/rally/internal/client/outbox"
	"github.com/okian/rally/internal/client/projection"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
)

// Client composes the optimistic projection with the offline outbox. Taps
// land locally first; Sync pushes them to the server whenever it is
// reachable and reconciles the projection against confirmed state.
type Client struct {
	sourceID   string
	projection *projection.Projection
	outbox     *outbox.Outbox
	transport  Transport
	now        func() time.Time
	log        logger.Logger

	outboxOpts []outbox.Option
}

// New creates a client for the given writer identity. The store determines
// outbox durability; use outbox.NewFileStore for crash-safe queuing.
func New(sourceID string, store outbox.Store, tp Transport, opts ...Option) (*Client, error) {
	c := &Client{
		sourceID:   sourceID,
		projection: projection.New(sourceID),
		transport:  tp,
		now:        time.Now,
		log:        logger.Named("client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	ob, err := outbox.New(store, c.outboxOpts...)
	if err != nil {
		return nil, err
	}
	c.outbox = ob
	return c, nil
}

// Tap records one score button press. The projection moves immediately and
// the event is queued durably; delivery happens on the next Sync.
func (c *Client) Tap(key model.MatchKey, side model.Side, delta int) (model.ScoreEvent, error) {
	ev := c.projection.Tap(key, side, delta)
	ev.Timestamp = c.now()

	if err := c.outbox.Enqueue(ev); err != nil {
		return model.ScoreEvent{}, err
	}
	return ev, nil
}

// Score returns the value the UI should display for a match side.
func (c *Client) Score(key model.MatchKey, side model.Side) int {
	return c.projection.Score(key, side)
}

// Pending returns the number of events awaiting a definitive server outcome.
func (c *Client) Pending() int {
	return c.outbox.Len()
}

// Sync replays the outbox oldest-first and then refreshes the projection for
// every match touched by the replayed events. A transport failure stops the
// replay with events still queued; the error is returned alongside whatever
// results were confirmed before the failure.
func (c *Client) Sync(ctx context.Context) ([]model.Result, error) {
	pending, err := c.outbox.Pending()
	if err != nil {
		return nil, err
	}

	touched := make(map[model.MatchKey]struct{}, len(pending))
	for _, entry := range pending {
		touched[entry.Event.Key()] = struct{}{}
	}

	results, flushErr := c.outbox.Flush(ctx, c.transport)

	for key := range touched {
		m, err := c.transport.GetMatch(ctx, key)
		if err != nil {
			c.log.Debug(ctx, "projection refresh skipped",
				logger.String("match", key.String()),
				logger.Error(err),
			)
			continue
		}
		c.projection.Observe(m)
	}

	return results, flushErr
}

// Refresh pulls one match from the server and folds it into the projection.
func (c *Client) Refresh(ctx context.Context, key model.MatchKey) (model.Match, error) {
	m, err := c.transport.GetMatch(ctx, key)
	if err != nil {
		return model.Match{}, err
	}
	c.projection.Observe(m)
	return m, nil
}
