// Package outbox persists score events on the client until the server has
// returned a definitive outcome for each one. Entries survive restarts and
// replay in enqueue order on reconnect.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
)

// DefaultCapacity bounds the number of pending entries before the oldest is
// evicted to admit a new one.
const DefaultCapacity = 1000

// Store persists outbox entries across restarts.
type Store interface {
	// Append durably records an entry at the tail.
	Append(entry model.OutboxEntry) error

	// RemoveByID drops the entry whose event carries the given client event
	// ID. Removing an unknown ID is not an error.
	RemoveByID(eventID string) error

	// ListAll returns all pending entries in enqueue order.
	ListAll() ([]model.OutboxEntry, error)
}

// Transport delivers one event to the server. A non-nil error means the
// delivery outcome is unknown and the event must stay queued.
type Transport interface {
	Deliver(ctx context.Context, ev model.ScoreEvent) (model.Result, error)
}

// Outbox queues events for at-least-once delivery with bounded capacity.
type Outbox struct {
	mu       sync.Mutex
	store    Store
	capacity int
	now      func() time.Time
	log      logger.Logger
}

// New creates an outbox over the given store.
func New(store Store, opts ...Option) (*Outbox, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	o := &Outbox{
		store:    store,
		capacity: DefaultCapacity,
		now:      time.Now,
		log:      logger.Named("outbox"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Enqueue appends an event, evicting the oldest pending entry when full.
func (o *Outbox) Enqueue(ev model.ScoreEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending, err := o.store.ListAll()
	if err != nil {
		return err
	}
	if o.capacity > 0 && len(pending) >= o.capacity {
		evicted := pending[0]
		if err := o.store.RemoveByID(evicted.Event.ClientEventID); err != nil {
			return err
		}
		o.log.Warn(context.Background(), "outbox full, evicted oldest entry",
			logger.String("evicted_event_id", evicted.Event.ClientEventID),
		)
	}

	return o.store.Append(model.OutboxEntry{
		Event:      ev,
		EnqueuedAt: o.now(),
	})
}

// Pending returns queued entries in enqueue order.
func (o *Outbox) Pending() ([]model.OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.ListAll()
}

// Len returns the number of queued entries.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	pending, err := o.store.ListAll()
	if err != nil {
		return 0
	}
	return len(pending)
}

// Flush replays pending entries oldest-first through the transport. Each
// entry is retired only once the server returns a definitive outcome; a
// transport failure leaves the entry queued and stops the replay so ordering
// is preserved. Returned results are in delivery order.
func (o *Outbox) Flush(ctx context.Context, tp Transport) ([]model.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending, err := o.store.ListAll()
	if err != nil {
		return nil, err
	}

	results := make([]model.Result, 0, len(pending))
	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := tp.Deliver(ctx, entry.Event)
		if err != nil {
			o.log.Debug(ctx, "delivery failed, keeping entry queued",
				logger.String("event_id", entry.Event.ClientEventID),
				logger.Error(err),
			)
			return results, err
		}

		if err := o.store.RemoveByID(entry.Event.ClientEventID); err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
