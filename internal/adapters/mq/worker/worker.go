// Package worker consumes done-state transitions: each transition is settled
// into the leaderboard and then bracket advancement is re-evaluated for the
// affected scope. The worker is the caller of the pure settlement core.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

// Shutdown timing constants.
const (
	workerShutdownTimeout = 5 * time.Second
)

// Settler folds one transition into the leaderboard.
type Settler interface {
	Settle(ctx context.Context, tr model.Transition) error
}

// Advancer re-evaluates bracket slots in a scope.
type Advancer interface {
	AdvanceDependents(ctx context.Context, scope string) (int, error)
}

// Queue defines how workers receive transitions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Transition
}

// Worker processes transitions until stopped.
type Worker struct {
	queue    Queue
	settler  Settler
	advancer Advancer
	name     string

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker(queue Queue, settler Settler, advancer Advancer, opts ...Option) *Worker {
	w := &Worker{
		queue:    queue,
		settler:  settler,
		advancer: advancer,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		log:      logger.Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	transitions := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case tr, ok := <-transitions:
			if !ok {
				return
			}
			if err := w.process(ctx, tr); err != nil {
				metrics.RecordWorkerError()
				w.log.Error(ctx, "transition processing failed",
					logger.String("transition", tr.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker, waiting for the current transition to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}

func (w *Worker) process(ctx context.Context, tr model.Transition) error {
	if err := w.settler.Settle(ctx, tr); err != nil {
		return fmt.Errorf("settle: %w", err)
	}

	// Completions can unlock dependent bracket slots.
	if tr.Completed() {
		if _, err := w.advancer.AdvanceDependents(ctx, tr.After.Key.Scope); err != nil {
			return fmt.Errorf("advance: %w", err)
		}
	}
	return nil
}

// Pool manages a fixed set of workers over one queue.
type Pool struct {
	workers []*Worker

	shutdown chan struct{}
	log      logger.Logger
}

// NewPool creates and wires workerCount workers.
func NewPool(workerCount int, queue Queue, settler Settler, advancer Advancer) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		workers:  make([]*Worker, workerCount),
		shutdown: make(chan struct{}),
		log:      logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(queue, settler, advancer, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers and waits briefly for them to drain.
func (p *Pool) Stop() {
	close(p.shutdown)
	for _, w := range p.workers {
		close(w.shutdown)
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			p.log.Warn(context.Background(), "worker did not stop in time",
				logger.String("worker", w.name),
			)
		}
	}
	metrics.UpdateWorkerCount(0)
}
