// Package queue defines the contract for enqueueing and consuming done-state
// transitions on their way to settlement.
package queue

import (
	"context"
	"sync"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/metrics"
)

// defaultCapacity bounds the in-memory transition queue.
const defaultCapacity = 10_000

// Transition is the payload type flowing through the queue.
type Transition = model.Transition

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a transition. Returns false when the queue is full or
	// closed and the transition was not accepted.
	Enqueue(ctx context.Context, t Transition) bool

	// Dequeue returns a channel receiving transitions as they arrive. The
	// channel closes when the queue closes.
	Dequeue(ctx context.Context) <-chan Transition

	// Len returns the current number of queued transitions.
	Len(ctx context.Context) int

	// Close stops the queue; no further enqueues are accepted.
	Close() error
}

// InMemoryQueue implements Queue over a buffered channel.
type InMemoryQueue struct {
	transitions chan Transition
	capacity    int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates an in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.transitions = make(chan Transition, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a transition without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Transition) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}

	select {
	case q.transitions <- t:
		metrics.UpdateQueueSize(len(q.transitions))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return false
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

// Dequeue returns a channel receiving transitions until the queue closes or
// ctx is canceled.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Transition {
	out := make(chan Transition)
	go func() {
		defer close(out)
		for t := range q.transitions {
			select {
			case out <- t:
				metrics.UpdateQueueSize(len(q.transitions))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued transitions.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.transitions)
}

// Close stops the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.transitions)
	q.closed = true
	return nil
}
