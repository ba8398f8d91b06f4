// Package worker runs the projection pool that turns collected tracking
// events into persisted record projections.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/propely/engage/internal/domain/event"
	"github.com/propely/engage/internal/domain/record"
	"github.com/propely/engage/pkg/logger"
	"github.com/propely/engage/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = event.Event

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Store receives the record projections a worker derives from events.
type Store interface {
	AppendTracking(ctx context.Context, t record.Tracking) error
	OpenView(ctx context.Context, proposalID, sessionID string, at time.Time) error
	AddViewTime(ctx context.Context, proposalID, sessionID string, seconds float64, at time.Time) error
}

// Worker processes events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// ProjectionWorker implements Worker, projecting one event at a time.
type ProjectionWorker struct {
	queue Queue
	store Store
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewProjectionWorker creates a worker with configuration options.
func NewProjectionWorker(queue Queue, store Store, opts ...Option) *ProjectionWorker {
	w := &ProjectionWorker{
		queue:    queue,
		store:    store,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *ProjectionWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.projectEvent(ctx, e); err != nil {
				w.logger.Error(ctx, "error projecting event", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *ProjectionWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// projectEvent turns one event into its record projections.
func (w *ProjectionWorker) projectEvent(ctx context.Context, e Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordProjectionLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.store.AppendTracking(ctx, record.FromEvent(e)); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "tracking_append")
		return fmt.Errorf("appending tracking for event %s: %w", e.EventID, err)
	}

	switch e.Type {
	case event.TypePageView:
		if err := w.store.OpenView(ctx, e.ProposalID, e.SessionID, e.TS); err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "view_open")
			return fmt.Errorf("opening view for event %s: %w", e.EventID, err)
		}
	case event.TypeTimeSpent:
		// Section dwell stays on the tracking record; only page-level
		// time accumulates on the session view.
		if _, sectioned := e.Data.String(event.KeySectionID); !sectioned {
			seconds, ok := e.Data.Number(event.KeyTimeSpent)
			if !ok || seconds <= 0 {
				break
			}
			if err := w.store.AddViewTime(ctx, e.ProposalID, e.SessionID, seconds, e.TS); err != nil {
				metrics.RecordWorkerError()
				metrics.RecordErrorByComponent("worker", "view_time")
				return fmt.Errorf("accumulating view time for event %s: %w", e.EventID, err)
			}
		}
	}

	metrics.RecordEventProjected()
	return nil
}

// Pool manages multiple projection workers.
type Pool struct {
	workers []*ProjectionWorker
	queue   Queue
	store   Store

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a projection pool of workerCount workers.
func NewPool(workerCount int, queue Queue, store Store) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*ProjectionWorker, workerCount),
		queue:    queue,
		store:    store,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("projection-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewProjectionWorker(queue, store, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers and waits briefly for each to finish.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, w := range p.workers {
		close(w.shutdown)
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown closes the queue and waits for workers to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
