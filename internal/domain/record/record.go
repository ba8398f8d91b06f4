// Package record defines the persisted projections the aggregation engine
// reads: proposals, per-session views, and flattened tracking records.
package record

import (
	"fmt"
	"time"

	"github.com/propely/engage/internal/domain/event"
)

// Status is the business lifecycle stage of a proposal.
type Status string

// Proposal lifecycle stages. The lifecycle is draft -> sent -> viewed ->
// accepted|rejected; transitions are enforced by the CRUD layer, not here.
const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// KnownStatuses returns the fixed status set in lifecycle order.
func KnownStatuses() []Status {
	return []Status{StatusDraft, StatusSent, StatusViewed, StatusAccepted, StatusRejected}
}

// ParseStatus validates membership in the fixed status set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusSent, StatusViewed, StatusAccepted, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Closed reports whether the proposal reached a terminal stage.
func (s Status) Closed() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Metadata carries the business fields attached to a proposal.
type Metadata struct {
	DealSize float64 `json:"dealSize"`
}

// Proposal is the read-only business projection of one proposal.
type Proposal struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Metadata  Metadata   `json:"metadata"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// View aggregates one viewing session of one proposal.
type View struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposal_id"`
	SessionID  string    `json:"session_id"`
	// TimeSpent is the accumulated foreground time in seconds.
	TimeSpent float64   `json:"time_spent"`
	CreatedAt time.Time `json:"created_at"`
}

// Tracking is the flattened persisted form of one tracking event. Fields
// absent from the source payload stay at their zero values.
type Tracking struct {
	ID           string     `json:"id"`
	ProposalID   string     `json:"proposal_id"`
	SessionID    string     `json:"session_id"`
	EventType    event.Type `json:"event_type"`
	SectionID    string     `json:"section_id,omitempty"`
	SectionTitle string     `json:"section_title,omitempty"`
	TimeSpent    float64    `json:"time_spent,omitempty"`
	ScrollDepth  float64    `json:"scroll_depth,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FromEvent flattens a tracking event into its persisted projection.
func FromEvent(e event.Event) Tracking {
	t := Tracking{
		ID:         e.EventID,
		ProposalID: e.ProposalID,
		SessionID:  e.SessionID,
		EventType:  e.Type,
		CreatedAt:  e.TS,
	}
	if v, ok := e.Data.String(event.KeySectionID); ok {
		t.SectionID = v
	}
	if v, ok := e.Data.String(event.KeySectionTitle); ok {
		t.SectionTitle = v
	}
	if v, ok := e.Data.Number(event.KeyTimeSpent); ok {
		t.TimeSpent = v
	}
	if v, ok := e.Data.Number(event.KeyScrollDepth); ok {
		t.ScrollDepth = v
	}
	return t
}
