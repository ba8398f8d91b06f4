package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/propely/engage/internal/domain/record"
	"github.com/propely/engage/pkg/metrics"
)

// MemStore implements Store with mutex-guarded in-memory collections.
// Persistence is the outer product's concern; the collector only needs the
// materialized collections the aggregation engine reads.
type MemStore struct {
	mu        sync.RWMutex
	proposals map[string]record.Proposal
	views     []record.View
	viewIdx   map[string]int // proposalID+"\x00"+sessionID -> views index
	trackings []record.Tracking
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		proposals: make(map[string]record.Proposal),
		viewIdx:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertProposal creates or replaces a proposal projection.
func (s *MemStore) UpsertProposal(_ context.Context, p record.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.proposals[p.ID] = p
	metrics.UpdateStoredRecords("proposal", len(s.proposals))
	return nil
}

// AppendTracking appends the flattened projection of one event.
func (s *MemStore) AppendTracking(_ context.Context, t record.Tracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trackings = append(s.trackings, t)
	metrics.UpdateStoredRecords("tracking", len(s.trackings))
	return nil
}

// OpenView ensures a view record exists for the session.
func (s *MemStore) OpenView(_ context.Context, proposalID, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.openViewLocked(proposalID, sessionID, at)
	return nil
}

// AddViewTime accumulates foreground seconds on the session's view.
func (s *MemStore) AddViewTime(_ context.Context, proposalID, sessionID string, seconds float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.openViewLocked(proposalID, sessionID, at)
	s.views[idx].TimeSpent += seconds
	return nil
}

func (s *MemStore) openViewLocked(proposalID, sessionID string, at time.Time) int {
	key := proposalID + "\x00" + sessionID
	if idx, ok := s.viewIdx[key]; ok {
		return idx
	}
	s.views = append(s.views, record.View{
		ID:         sessionID,
		ProposalID: proposalID,
		SessionID:  sessionID,
		CreatedAt:  at,
	})
	idx := len(s.views) - 1
	s.viewIdx[key] = idx
	metrics.UpdateStoredRecords("view", len(s.views))
	return idx
}

// Proposals returns a copy of all proposal projections, ordered by id.
func (s *MemStore) Proposals(_ context.Context) []record.Proposal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Views returns a copy of all view records in insertion order.
func (s *MemStore) Views(_ context.Context) []record.View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.View, len(s.views))
	copy(out, s.views)
	return out
}

// Trackings returns a copy of all tracking records in insertion order.
func (s *MemStore) Trackings(_ context.Context) []record.Tracking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Tracking, len(s.trackings))
	copy(out, s.trackings)
	return out
}

// Counts returns the number of stored proposals, views and trackings.
func (s *MemStore) Counts(_ context.Context) (proposals, views, trackings int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proposals), len(s.views), len(s.trackings)
}
