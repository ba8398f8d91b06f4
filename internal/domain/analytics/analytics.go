// Package analytics computes business metrics over persisted proposal, view
// and tracking collections. Every function is pure: identical inputs yield
// identical outputs, nothing shared is mutated, and zero denominators produce
// defined zero results instead of errors.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/propely/engage/internal/domain/event"
	"github.com/propely/engage/internal/domain/record"
)

// Engagement score weighting: dwell time saturates at 5 minutes, and dwell
// and scroll depth each contribute half of the 0..100 scale.
const (
	dwellSaturationSeconds = 300.0
	dwellWeight            = 50.0
	scrollWeight           = 50.0
)

// Top-performing score weighting: each view is worth ten points plus one
// point per minute of average dwell.
const (
	viewWorth      = 10.0
	dwellPerMinute = 60.0
)

const hoursPerDay = 24

// WinRate returns accepted/sent as a whole percentage among non-draft
// proposals. 0 if nothing was sent.
func WinRate(proposals []record.Proposal) int {
	var sent, accepted int
	for _, p := range proposals {
		if p.Status == record.StatusDraft {
			continue
		}
		sent++
		if p.Status == record.StatusAccepted {
			accepted++
		}
	}
	if sent == 0 {
		return 0
	}
	return roundInt(100 * float64(accepted) / float64(sent))
}

// AvgDealSize returns the mean deal size over accepted proposals. 0 if none.
func AvgDealSize(proposals []record.Proposal) float64 {
	var sum float64
	var n int
	for _, p := range proposals {
		if p.Status == record.StatusAccepted {
			sum += p.Metadata.DealSize
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TotalRevenue returns the summed deal size over accepted proposals.
func TotalRevenue(proposals []record.Proposal) float64 {
	var sum float64
	for _, p := range proposals {
		if p.Status == record.StatusAccepted {
			sum += p.Metadata.DealSize
		}
	}
	return sum
}

// AvgTimeToClose returns the mean whole days between sent_at and updated_at
// over closed (accepted or rejected) proposals that have a sent_at. 0 if none.
func AvgTimeToClose(proposals []record.Proposal) int {
	var days float64
	var n int
	for _, p := range proposals {
		if !p.Status.Closed() || p.SentAt == nil {
			continue
		}
		days += p.UpdatedAt.Sub(*p.SentAt).Hours() / hoursPerDay
		n++
	}
	if n == 0 {
		return 0
	}
	return roundInt(days / float64(n))
}

// ViewRate returns the whole percentage of non-draft proposals with at least
// one associated view record. 0 if nothing was sent.
func ViewRate(proposals []record.Proposal, views []record.View) int {
	viewed := make(map[string]struct{}, len(views))
	for _, v := range views {
		viewed[v.ProposalID] = struct{}{}
	}
	var sent, withView int
	for _, p := range proposals {
		if p.Status == record.StatusDraft {
			continue
		}
		sent++
		if _, ok := viewed[p.ID]; ok {
			withView++
		}
	}
	if sent == 0 {
		return 0
	}
	return roundInt(100 * float64(withView) / float64(sent))
}

// AvgTimeSpent returns the mean time_spent in seconds across view records.
// 0 if there are no views.
func AvgTimeSpent(views []record.View) float64 {
	if len(views) == 0 {
		return 0
	}
	var sum float64
	for _, v := range views {
		sum += v.TimeSpent
	}
	return sum / float64(len(views))
}

// EngagementScore blends average dwell time and average scroll depth into a
// single 0..100 figure. Empty inputs score 0.
func EngagementScore(views []record.View, trackings []record.Tracking) int {
	dwell := AvgTimeSpent(views)
	var scroll float64
	if len(trackings) > 0 {
		var sum float64
		for _, t := range trackings {
			sum += t.ScrollDepth
		}
		scroll = sum / float64(len(trackings))
	}
	score := math.Min(dwell/dwellSaturationSeconds, 1)*dwellWeight + scroll/100*scrollWeight
	return clampInt(roundInt(score), 0, 100)
}

// StatusDistribution tallies proposals over the fixed status set. Every
// known status appears in the result, zero-filled.
func StatusDistribution(proposals []record.Proposal) map[record.Status]int {
	dist := make(map[record.Status]int, len(record.KnownStatuses()))
	for _, s := range record.KnownStatuses() {
		dist[s] = 0
	}
	for _, p := range proposals {
		if _, ok := dist[p.Status]; ok {
			dist[p.Status]++
		}
	}
	return dist
}

// Interval selects the time-series bucket width.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// ParseInterval validates an interval name.
func ParseInterval(s string) (Interval, bool) {
	switch Interval(s) {
	case IntervalDay, IntervalWeek, IntervalMonth:
		return Interval(s), true
	default:
		return "", false
	}
}

// DateField selects which proposal timestamp drives the bucketing.
type DateField string

const (
	FieldCreatedAt DateField = "created_at"
	FieldSentAt    DateField = "sent_at"
	FieldUpdatedAt DateField = "updated_at"
)

// ParseDateField validates a date field name.
func ParseDateField(s string) (DateField, bool) {
	switch DateField(s) {
	case FieldCreatedAt, FieldSentAt, FieldUpdatedAt:
		return DateField(s), true
	default:
		return "", false
	}
}

// TimeBucket is one entry of a time series, keyed by its bucket label.
type TimeBucket struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue,omitempty"`
}

// TimeSeries groups proposals by the chosen date field and interval.
// Proposals whose date field is missing are skipped. When withRevenue is
// set, deal size is summed for accepted proposals only. The result is
// sorted ascending by bucket key.
func TimeSeries(proposals []record.Proposal, field DateField, interval Interval, withRevenue bool) []TimeBucket {
	buckets := make(map[string]*TimeBucket)
	for _, p := range proposals {
		ts, ok := dateOf(p, field)
		if !ok {
			continue
		}
		key := bucketKey(ts, interval)
		b, ok := buckets[key]
		if !ok {
			b = &TimeBucket{Key: key}
			buckets[key] = b
		}
		b.Count++
		if withRevenue && p.Status == record.StatusAccepted {
			b.Revenue += p.Metadata.DealSize
		}
	}

	out := make([]TimeBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func dateOf(p record.Proposal, field DateField) (time.Time, bool) {
	switch field {
	case FieldSentAt:
		if p.SentAt == nil {
			return time.Time{}, false
		}
		return *p.SentAt, true
	case FieldUpdatedAt:
		return p.UpdatedAt, !p.UpdatedAt.IsZero()
	default:
		return p.CreatedAt, !p.CreatedAt.IsZero()
	}
}

func bucketKey(ts time.Time, interval Interval) string {
	switch interval {
	case IntervalWeek:
		// Weeks start on Sunday; the bucket key is that Sunday's date.
		sunday := ts.AddDate(0, 0, -int(ts.Weekday()))
		return sunday.Format("2006-01-02")
	case IntervalMonth:
		return ts.Format("2006-01")
	default:
		return ts.Format("2006-01-02")
	}
}

// SectionStat summarizes engagement with one document section.
type SectionStat struct {
	SectionID      string  `json:"section_id"`
	SectionTitle   string  `json:"section_title,omitempty"`
	Views          int     `json:"views"`
	AvgTimeSpent   float64 `json:"avg_time_spent"`
	AvgScrollDepth float64 `json:"avg_scroll_depth"`
}

// SectionEngagement groups section_view tracking records by section id and
// averages their dwell and scroll figures. Sorted by view count descending,
// section id ascending on ties.
func SectionEngagement(trackings []record.Tracking) []SectionStat {
	type acc struct {
		stat   SectionStat
		dwell  float64
		scroll float64
	}
	groups := make(map[string]*acc)
	for _, t := range trackings {
		if t.EventType != event.TypeSectionView || t.SectionID == "" {
			continue
		}
		g, ok := groups[t.SectionID]
		if !ok {
			g = &acc{stat: SectionStat{SectionID: t.SectionID, SectionTitle: t.SectionTitle}}
			groups[t.SectionID] = g
		}
		g.stat.Views++
		g.dwell += t.TimeSpent
		g.scroll += t.ScrollDepth
		if g.stat.SectionTitle == "" {
			g.stat.SectionTitle = t.SectionTitle
		}
	}

	out := make([]SectionStat, 0, len(groups))
	for _, g := range groups {
		n := float64(g.stat.Views)
		g.stat.AvgTimeSpent = g.dwell / n
		g.stat.AvgScrollDepth = g.scroll / n
		out = append(out, g.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].SectionID < out[j].SectionID
	})
	return out
}

// FunnelStage is one step of the conversion funnel.
type FunnelStage struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// ConversionFunnel reports Created/Sent/Viewed/Accepted counts, each with
// its percentage of Created. Viewed is status-derived (viewed, accepted or
// rejected) rather than view-record-derived; that is the product definition
// of the stage, not an inference from observed views.
func ConversionFunnel(proposals []record.Proposal) []FunnelStage {
	created := len(proposals)
	var sent, viewed, accepted int
	for _, p := range proposals {
		if p.Status != record.StatusDraft {
			sent++
		}
		if p.Status == record.StatusViewed || p.Status.Closed() {
			viewed++
		}
		if p.Status == record.StatusAccepted {
			accepted++
		}
	}

	pct := func(n int) int {
		if created == 0 {
			return 0
		}
		return roundInt(100 * float64(n) / float64(created))
	}
	return []FunnelStage{
		{Name: "Created", Count: created, Percentage: pct(created)},
		{Name: "Sent", Count: sent, Percentage: pct(sent)},
		{Name: "Viewed", Count: viewed, Percentage: pct(viewed)},
		{Name: "Accepted", Count: accepted, Percentage: pct(accepted)},
	}
}

// Performance ranks one proposal by view count and average dwell.
type Performance struct {
	ProposalID   string  `json:"proposal_id"`
	ViewCount    int     `json:"view_count"`
	AvgTimeSpent float64 `json:"avg_time_spent"`
	Score        float64 `json:"score"`
}

// TopPerforming scores each proposal as viewCount*10 + avgTimeSpent/60,
// sorts descending and truncates to limit. A non-positive limit yields an
// empty result.
func TopPerforming(proposals []record.Proposal, views []record.View, limit int) []Performance {
	if limit <= 0 {
		return []Performance{}
	}

	type viewAgg struct {
		count int
		dwell float64
	}
	byProposal := make(map[string]*viewAgg, len(proposals))
	for _, v := range views {
		agg, ok := byProposal[v.ProposalID]
		if !ok {
			agg = &viewAgg{}
			byProposal[v.ProposalID] = agg
		}
		agg.count++
		agg.dwell += v.TimeSpent
	}

	out := make([]Performance, 0, len(proposals))
	for _, p := range proposals {
		perf := Performance{ProposalID: p.ID}
		if agg, ok := byProposal[p.ID]; ok && agg.count > 0 {
			perf.ViewCount = agg.count
			perf.AvgTimeSpent = agg.dwell / float64(agg.count)
		}
		perf.Score = float64(perf.ViewCount)*viewWorth + perf.AvgTimeSpent/dwellPerMinute
		out = append(out, perf)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProposalID < out[j].ProposalID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summary bundles the point-in-time dashboard figures.
type Summary struct {
	WinRate            int                   `json:"win_rate"`
	AvgDealSize        float64               `json:"avg_deal_size"`
	TotalRevenue       float64               `json:"total_revenue"`
	AvgTimeToCloseDays int                   `json:"avg_time_to_close_days"`
	ViewRate           int                   `json:"view_rate"`
	AvgTimeSpent       float64               `json:"avg_time_spent"`
	EngagementScore    int                   `json:"engagement_score"`
	StatusDistribution map[record.Status]int `json:"status_distribution"`
}

// Summarize computes the full dashboard summary in one pass over the inputs.
func Summarize(proposals []record.Proposal, views []record.View, trackings []record.Tracking) Summary {
	return Summary{
		WinRate:            WinRate(proposals),
		AvgDealSize:        AvgDealSize(proposals),
		TotalRevenue:       TotalRevenue(proposals),
		AvgTimeToCloseDays: AvgTimeToClose(proposals),
		ViewRate:           ViewRate(proposals, views),
		AvgTimeSpent:       AvgTimeSpent(views),
		EngagementScore:    EngagementScore(views, trackings),
		StatusDistribution: StatusDistribution(proposals),
	}
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
