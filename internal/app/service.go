// Package service provides the core engagement service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/propely/engage/internal/adapters/mq/queue"
	workerpool "github.com/propely/engage/internal/adapters/mq/worker"
	repository "github.com/propely/engage/internal/adapters/repository"
	"github.com/propely/engage/internal/domain/dedupe"
	"github.com/propely/engage/internal/domain/event"
	"github.com/propely/engage/internal/domain/record"
	"github.com/propely/engage/pkg/logger"
	"github.com/propely/engage/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize    = 100000
	defaultDedupeSize   = 50000
	shutdownGracePeriod = 30 * time.Second
)

// Service implements the API dependencies for the engagement system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	seedProposals []record.Proposal

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of projection worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSeedProposals preloads proposals into the store on start.
func WithSeedProposals(proposals []record.Proposal) Option {
	return func(s *Service) {
		s.seedProposals = proposals
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		stopCh:      make(chan struct{}),
		logger:      nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting engagement service...")

	// Initialize components
	s.store = repository.NewMemStore(
		repository.WithSeedProposals(s.seedProposals),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)

	// Create and start the projection pool
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.store)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "engagement service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service, draining queued events first.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	s.logger.Info(ctx, "stopping engagement service...")

	// Shutdown closes the queue and waits for workers to drain it
	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}

	// Signal any observers to stop
	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "engagement service stopped")
}

// SeenAndRecord atomically checks if an event id was seen and records it if not.
// Returns true if the event was already seen, false if it was newly recorded.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes an event id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits an event for asynchronous projection.
func (s *Service) Enqueue(ctx context.Context, e event.Event) bool {
	s.logger.Debug(ctx, "received event",
		logger.String("eventID", e.EventID),
		logger.String("proposalID", e.ProposalID),
		logger.String("eventType", string(e.Type)),
	)

	success := s.eventQueue.Enqueue(ctx, e)
	if success {
		metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	}
	return success
}

// UpsertProposal stores or replaces a proposal.
func (s *Service) UpsertProposal(ctx context.Context, p record.Proposal) error {
	return s.store.UpsertProposal(ctx, p)
}

// Proposals returns a snapshot of all stored proposals.
func (s *Service) Proposals(ctx context.Context) []record.Proposal {
	return s.store.Proposals(ctx)
}

// Views returns a snapshot of all stored views.
func (s *Service) Views(ctx context.Context) []record.View {
	return s.store.Views(ctx)
}

// Trackings returns a snapshot of all stored tracking records.
func (s *Service) Trackings(ctx context.Context) []record.Tracking {
	return s.store.Trackings(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		proposals, views, trackings := s.store.Counts(ctx)

		stats["queueLength"] = queueLen
		stats["proposals"] = proposals
		stats["views"] = views
		stats["trackings"] = trackings
		stats["dedupeEntries"] = s.deduper.Size()

		// Update metrics
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateStoredRecords("proposal", proposals)
		metrics.UpdateStoredRecords("view", views)
		metrics.UpdateStoredRecords("tracking", trackings)
	}

	return stats
}
