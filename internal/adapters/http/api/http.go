// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/propely/engage/internal/domain/dedupe"
	"github.com/propely/engage/internal/domain/event"
	"github.com/propely/engage/internal/domain/record"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes an event for async projection. Returns false on backpressure.
	Enqueue(ctx context.Context, e event.Event) bool

	// UpsertProposal stores or replaces a proposal.
	UpsertProposal(ctx context.Context, p record.Proposal) error

	// Read operations expose the aggregation inputs.
	Proposals(ctx context.Context) []record.Proposal
	Views(ctx context.Context) []record.View
	Trackings(ctx context.Context) []record.Tracking
}

// Server wires HTTP routes for the collection and analytics API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	eventsHandler    *EventsHandler
	proposalsHandler *ProposalsHandler
	analyticsHandler *AnalyticsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxTopLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		eventsHandler:    NewEventsHandler(deps),
		proposalsHandler: NewProposalsHandler(deps),
		analyticsHandler: NewAnalyticsHandler(deps, maxTopLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/proposals", MetricsMiddleware(s.proposalsHandler.HandleUpsertProposal, "proposals"))
	mux.HandleFunc("/analytics/summary", MetricsMiddleware(s.analyticsHandler.HandleSummary, "analytics_summary"))
	mux.HandleFunc("/analytics/funnel", MetricsMiddleware(s.analyticsHandler.HandleFunnel, "analytics_funnel"))
	mux.HandleFunc("/analytics/timeseries", MetricsMiddleware(s.analyticsHandler.HandleTimeseries, "analytics_timeseries"))
	mux.HandleFunc("/analytics/sections", MetricsMiddleware(s.analyticsHandler.HandleSections, "analytics_sections"))
	mux.HandleFunc("/analytics/top", MetricsMiddleware(s.analyticsHandler.HandleTop, "analytics_top"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
