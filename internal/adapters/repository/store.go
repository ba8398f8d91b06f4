// Package repository defines the record store interface and its in-memory
// implementation.
package repository

import (
	"context"
	"time"

	"github.com/propely/engage/internal/domain/record"
)

// Store provides read/write access to the persisted record collections.
// Reads return copies so callers can aggregate without holding locks.
type Store interface {
	// UpsertProposal creates or replaces a proposal projection.
	UpsertProposal(ctx context.Context, p record.Proposal) error

	// AppendTracking appends the flattened projection of one event.
	AppendTracking(ctx context.Context, t record.Tracking) error

	// OpenView ensures a view record exists for the session. Idempotent.
	OpenView(ctx context.Context, proposalID, sessionID string, at time.Time) error

	// AddViewTime accumulates foreground seconds on the session's view,
	// opening the view first if the page_view event was lost.
	AddViewTime(ctx context.Context, proposalID, sessionID string, seconds float64, at time.Time) error

	// Proposals returns a copy of all proposal projections.
	Proposals(ctx context.Context) []record.Proposal

	// Views returns a copy of all view records in insertion order.
	Views(ctx context.Context) []record.View

	// Trackings returns a copy of all tracking records in insertion order.
	Trackings(ctx context.Context) []record.Tracking

	// Counts returns the number of stored proposals, views and trackings.
	Counts(ctx context.Context) (proposals, views, trackings int)
}
