package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/propely/engage/internal/adapters/http/api"
	"github.com/propely/engage/internal/domain/analytics"
	"github.com/propely/engage/internal/domain/event"
	"github.com/propely/engage/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDeps struct {
	seen           map[string]bool
	enqueueSuccess bool
	enqueued       []event.Event
	proposals      map[string]record.Proposal
	views          []record.View
	trackings      []record.Tracking
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		seen:           make(map[string]bool),
		enqueueSuccess: true,
		proposals:      make(map[string]record.Proposal),
	}
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) {
	delete(m.seen, id)
}

func (m *mockDeps) Size() int64 {
	return int64(len(m.seen))
}

func (m *mockDeps) Enqueue(_ context.Context, e event.Event) bool {
	if !m.enqueueSuccess {
		return false
	}
	m.enqueued = append(m.enqueued, e)
	return true
}

func (m *mockDeps) UpsertProposal(_ context.Context, p record.Proposal) error {
	m.proposals[p.ID] = p
	return nil
}

func (m *mockDeps) Proposals(_ context.Context) []record.Proposal {
	out := make([]record.Proposal, 0, len(m.proposals))
	for _, p := range m.proposals {
		out = append(out, p)
	}
	return out
}

func (m *mockDeps) Views(_ context.Context) []record.View {
	return m.views
}

func (m *mockDeps) Trackings(_ context.Context) []record.Tracking {
	return m.trackings
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux(deps *mockDeps) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"queue_size": 0}}, 100)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func eventBody(id string) string {
	return `{
		"eventId": "` + id + `",
		"proposalId": "prop-1",
		"eventType": "page_view",
		"eventData": {"viewportWidth": 1280},
		"sessionId": "1709294400000-a1b2c3d",
		"ts": "2024-03-01T12:00:00Z"
	}`
}

func TestEventsEndpoint(t *testing.T) {
	Convey("Given the events endpoint", t, func() {
		deps := newMockDeps()
		mux := newTestMux(deps)

		post := func(body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("When a valid event is posted", func() {
			w := post(eventBody("evt-1"))

			Convey("Then it is accepted and enqueued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].EventID, ShouldEqual, "evt-1")
				So(deps.enqueued[0].Type, ShouldEqual, event.TypePageView)
			})
		})

		Convey("When the same event is posted twice", func() {
			post(eventBody("evt-1"))
			w := post(eventBody("evt-1"))

			Convey("Then the second submission acks as duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When the body is not valid JSON", func() {
			w := post("{not json")

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When required fields are missing", func() {
			w := post(`{"eventType": "page_view"}`)

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the event type is unknown", func() {
			w := post(`{
				"eventId": "evt-1",
				"proposalId": "prop-1",
				"eventType": "hover",
				"sessionId": "1709294400000-a1b2c3d",
				"ts": "2024-03-01T12:00:00Z"
			}`)

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the queue is saturated", func() {
			deps.enqueueSuccess = false
			w := post(eventBody("evt-1"))

			Convey("Then the caller sees backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)

				var resp struct {
					Code string `json:"code"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Code, ShouldEqual, "backpressure")
			})

			Convey("And the event id is released for retry", func() {
				deps.enqueueSuccess = true
				w2 := post(eventBody("evt-1"))
				So(w2.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When a GET hits the endpoint", func() {
			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestProposalsEndpoint(t *testing.T) {
	Convey("Given the proposals endpoint", t, func() {
		deps := newMockDeps()
		mux := newTestMux(deps)

		post := func(body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/proposals", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("When a valid proposal is posted", func() {
			w := post(`{"id": "prop-1", "status": "sent", "dealSize": 50000}`)

			Convey("Then it is stored with its deal size", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				stored, ok := deps.proposals["prop-1"]
				So(ok, ShouldBeTrue)
				So(stored.Status, ShouldEqual, record.StatusSent)
				So(stored.Metadata.DealSize, ShouldEqual, 50000)
			})

			Convey("And a sent proposal without sent_at gets one", func() {
				So(deps.proposals["prop-1"].SentAt, ShouldNotBeNil)
			})
		})

		Convey("When the status is omitted", func() {
			w := post(`{"id": "prop-2"}`)

			Convey("Then the proposal starts as a draft", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.proposals["prop-2"].Status, ShouldEqual, record.StatusDraft)
				So(deps.proposals["prop-2"].SentAt, ShouldBeNil)
			})
		})

		Convey("When the status is unknown", func() {
			w := post(`{"id": "prop-3", "status": "archived"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the id is missing", func() {
			w := post(`{"status": "draft"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the deal size is negative", func() {
			w := post(`{"id": "prop-4", "dealSize": -100}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAnalyticsEndpoints(t *testing.T) {
	Convey("Given stored proposals, views and trackings", t, func() {
		deps := newMockDeps()

		accepted := record.StatusAccepted
		sent := record.StatusSent
		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		for i, st := range []record.Status{accepted, sent, sent, record.StatusDraft} {
			id := []string{"p1", "p2", "p3", "p4"}[i]
			deps.proposals[id] = record.Proposal{
				ID:        id,
				Status:    st,
				Metadata:  record.Metadata{DealSize: 10000},
				CreatedAt: base.AddDate(0, 0, i),
				UpdatedAt: base.AddDate(0, 0, i),
			}
		}
		deps.views = []record.View{
			{ID: "s1", ProposalID: "p1", SessionID: "s1", TimeSpent: 120, CreatedAt: base},
			{ID: "s2", ProposalID: "p2", SessionID: "s2", TimeSpent: 60, CreatedAt: base},
		}
		deps.trackings = []record.Tracking{
			{ID: "t1", ProposalID: "p1", SessionID: "s1", EventType: event.TypeSectionView, SectionID: "pricing", SectionTitle: "Pricing", CreatedAt: base},
			{ID: "t2", ProposalID: "p1", SessionID: "s1", EventType: event.TypeScroll, ScrollDepth: 80, CreatedAt: base},
		}
		mux := newTestMux(deps)

		get := func(path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("When the summary is requested", func() {
			w := get("/analytics/summary")

			Convey("Then all headline metrics are present", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var summary analytics.Summary
				So(json.Unmarshal(w.Body.Bytes(), &summary), ShouldBeNil)
				So(summary.WinRate, ShouldEqual, 33)
				So(summary.TotalRevenue, ShouldEqual, 10000)
				So(summary.ViewRate, ShouldEqual, 67)
				So(summary.StatusDistribution[record.StatusSent], ShouldEqual, 2)
			})
		})

		Convey("When the funnel is requested", func() {
			w := get("/analytics/funnel")

			Convey("Then the stages arrive in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var funnel []analytics.FunnelStage
				So(json.Unmarshal(w.Body.Bytes(), &funnel), ShouldBeNil)
				So(funnel, ShouldHaveLength, 4)
				So(funnel[0].Name, ShouldEqual, "Created")
				So(funnel[0].Count, ShouldEqual, 4)
			})
		})

		Convey("When a timeseries is requested", func() {
			w := get("/analytics/timeseries?field=created_at&interval=month&revenue=true")

			Convey("Then proposals are bucketed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var series []analytics.TimeBucket
				So(json.Unmarshal(w.Body.Bytes(), &series), ShouldBeNil)
				So(series, ShouldHaveLength, 1)
				So(series[0].Key, ShouldEqual, "2024-03")
				So(series[0].Count, ShouldEqual, 4)
				So(series[0].Revenue, ShouldEqual, 10000)
			})
		})

		Convey("When the timeseries interval is unknown", func() {
			So(get("/analytics/timeseries?interval=year").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the timeseries field is unknown", func() {
			So(get("/analytics/timeseries?field=closed_at").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When section engagement is requested", func() {
			w := get("/analytics/sections")

			Convey("Then sections are grouped", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var sections []analytics.SectionStat
				So(json.Unmarshal(w.Body.Bytes(), &sections), ShouldBeNil)
				So(sections, ShouldHaveLength, 1)
				So(sections[0].SectionID, ShouldEqual, "pricing")
			})
		})

		Convey("When the top performers are requested", func() {
			w := get("/analytics/top?limit=1")

			Convey("Then the list is truncated to the limit", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var top []analytics.Performance
				So(json.Unmarshal(w.Body.Bytes(), &top), ShouldBeNil)
				So(top, ShouldHaveLength, 1)
				So(top[0].ProposalID, ShouldEqual, "p1")
			})
		})

		Convey("When the top limit is out of range", func() {
			So(get("/analytics/top?limit=0").Code, ShouldEqual, http.StatusBadRequest)
			So(get("/analytics/top?limit=101").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the top limit is omitted", func() {
			So(get("/analytics/top").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the service endpoints", t, func() {
		mux := newTestMux(newMockDeps())

		Convey("When stats are requested", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats, ShouldContainKey, "queue_size")
		})

		Convey("When health is probed", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}
