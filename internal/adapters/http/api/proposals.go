// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/propely/engage/internal/domain/record"
)

// ProposalDependencies defines the interface for proposal storage.
type ProposalDependencies interface {
	UpsertProposal(ctx context.Context, p record.Proposal) error
}

// ProposalsHandler handles proposal upserts.
type ProposalsHandler struct {
	deps ProposalDependencies
}

// NewProposalsHandler creates a new proposals handler.
func NewProposalsHandler(deps ProposalDependencies) *ProposalsHandler {
	return &ProposalsHandler{deps: deps}
}

// proposalRequest mirrors the wire schema for POST /proposals.
type proposalRequest struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	DealSize  float64    `json:"dealSize"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

func (p proposalRequest) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("missing id")
	}
	if p.DealSize < 0 {
		return errors.New("negative dealSize")
	}
	return nil
}

// HandleUpsertProposal handles POST /proposals requests.
func (h *ProposalsHandler) HandleUpsertProposal(w http.ResponseWriter, r *http.Request) {
	const op = "api.upsert_proposal"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	status := record.StatusDraft
	if req.Status != "" {
		parsed, err := record.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		status = parsed
	}

	now := time.Now().UTC()
	p := record.Proposal{
		ID:        req.ID,
		Status:    status,
		Metadata:  record.Metadata{DealSize: req.DealSize},
		CreatedAt: now,
		SentAt:    req.SentAt,
		UpdatedAt: now,
	}
	if req.CreatedAt != nil {
		p.CreatedAt = *req.CreatedAt
	}
	// A proposal past draft has been sent even if the caller omitted when.
	if p.SentAt == nil && status != record.StatusDraft {
		p.SentAt = &now
	}

	if err := h.deps.UpsertProposal(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}
