// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/propely/engage/internal/domain/analytics"
	"github.com/propely/engage/internal/domain/record"
)

const defaultTopLimit = 5

// AnalyticsDependencies defines the read surface the analytics endpoints
// aggregate over.
type AnalyticsDependencies interface {
	Proposals(ctx context.Context) []record.Proposal
	Views(ctx context.Context) []record.View
	Trackings(ctx context.Context) []record.Tracking
}

// AnalyticsHandler computes aggregate metrics on request. All aggregation is
// pure; every request recomputes from the current record snapshots.
type AnalyticsHandler struct {
	deps     AnalyticsDependencies
	maxLimit int
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies, maxLimit int) *AnalyticsHandler {
	return &AnalyticsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleSummary handles GET /analytics/summary requests.
func (h *AnalyticsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	summary := analytics.Summarize(h.deps.Proposals(ctx), h.deps.Views(ctx), h.deps.Trackings(ctx))
	writeJSON(w, http.StatusOK, summary)
}

// HandleFunnel handles GET /analytics/funnel requests.
func (h *AnalyticsHandler) HandleFunnel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, analytics.ConversionFunnel(h.deps.Proposals(r.Context())))
}

// HandleTimeseries handles GET /analytics/timeseries requests.
// Query parameters: field (created_at|sent_at|updated_at, default
// created_at), interval (day|week|month, default day), revenue (true to
// include accepted revenue per bucket).
func (h *AnalyticsHandler) HandleTimeseries(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_timeseries"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	field := analytics.FieldCreatedAt
	if s := q.Get("field"); s != "" {
		parsed, ok := analytics.ParseDateField(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("unknown field")))
			return
		}
		field = parsed
	}

	interval := analytics.IntervalDay
	if s := q.Get("interval"); s != "" {
		parsed, ok := analytics.ParseInterval(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("unknown interval")))
			return
		}
		interval = parsed
	}

	withRevenue := q.Get("revenue") == "true"
	series := analytics.TimeSeries(h.deps.Proposals(r.Context()), field, interval, withRevenue)
	writeJSON(w, http.StatusOK, series)
}

// HandleSections handles GET /analytics/sections requests.
func (h *AnalyticsHandler) HandleSections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, analytics.SectionEngagement(h.deps.Trackings(r.Context())))
}

// HandleTop handles GET /analytics/top?limit=N requests.
func (h *AnalyticsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_top"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	n := defaultTopLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if parsed > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		n = parsed
	}

	ctx := r.Context()
	top := analytics.TopPerforming(h.deps.Proposals(ctx), h.deps.Views(ctx), n)
	writeJSON(w, http.StatusOK, top)
}
