package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/propely/engage/pkg/logger"
)

// settleDelay gives the collector time to drain its queue before the
// analytics snapshot is fetched.
const settleDelay = 2 * time.Second

// Weighted status distribution for seeded proposals.
var statusDistribution = []struct {
	status string
	weight int64
}{
	{"draft", 15},
	{"sent", 35},
	{"viewed", 25},
	{"accepted", 15},
	{"rejected", 10},
}

// Run executes the complete engagement simulation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	if config.Verbose {
		_ = logger.SetLevelString("debug")
	}

	logger.Get().Info(ctx, "starting engagement simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("proposals", config.Proposals),
		logger.Int("sessions", config.Sessions),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Seed proposals
	proposalIDs, err := seedProposals(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("proposal seeding failed: %w", err)
	}

	// Step 3: Run viewing sessions concurrently
	runSessions(ctx, config, proposalIDs, stats)

	// Step 4: Wait for the collector to drain
	logger.Get().Info(ctx, "waiting for events to be projected")
	time.Sleep(settleDelay)

	// Step 5: Fetch the resulting analytics
	if err := fetchAnalytics(ctx, config); err != nil {
		logger.Get().Warn(ctx, "failed to fetch analytics", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(config.BaseURL + "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// Accept any 200 response as healthy (the endpoint serves Prometheus metrics)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// seedProposals creates the proposal population the sessions will view.
func seedProposals(ctx context.Context, config *Config, stats *Stats) ([]string, error) {
	logger.Get().Info(ctx, "seeding proposals", logger.Int("count", config.Proposals))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/proposals"
	ids := make([]string, 0, config.Proposals)

	for i := 0; i < config.Proposals; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		id := "prop-" + uuid.NewString()[:8]
		body := map[string]interface{}{
			"id":       id,
			"status":   pickStatus(),
			"dealSize": 5000 + getRandomFloat()*95000,
		}

		resp, err := client.Post(url, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create proposal %d: %w", i, err)
		}
		_, _ = readResponseBody(resp)
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("proposal creation failed with status: %d", resp.StatusCode)
		}

		ids = append(ids, id)
		stats.ProposalsCreated++
	}

	logger.Get().Info(ctx, "proposals seeded", logger.Int("count", len(ids)))
	return ids, nil
}

// pickStatus draws one status from the weighted distribution.
func pickStatus() string {
	var total int64
	for _, s := range statusDistribution {
		total += s.weight
	}
	n := getRandomInt(total)
	for _, s := range statusDistribution {
		if n < s.weight {
			return s.status
		}
		n -= s.weight
	}
	return "sent"
}

// runSessions drives the viewing sessions through a worker pool.
func runSessions(ctx context.Context, config *Config, proposalIDs []string, stats *Stats) {
	logger.Get().Info(ctx, "running viewing sessions",
		logger.Int("sessions", config.Sessions),
		logger.Int("workers", config.Workers))

	transport := newCountingTransport(config.BaseURL, config.Timeout, stats)

	jobs := make(chan string, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for proposalID := range jobs {
				runSession(ctx, transport, proposalID)
			}
		}()
	}

	for i := 0; i < config.Sessions; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- proposalIDs[getRandomInt(int64(len(proposalIDs)))]:
			stats.SessionsRun++
		}
	}
	close(jobs)
	wg.Wait()
}

// fetchAnalytics pulls the aggregate endpoints and logs the headline numbers.
func fetchAnalytics(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)

	resp, err := client.Get(config.BaseURL + "/analytics/summary")
	if err != nil {
		return fmt.Errorf("failed to fetch summary: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read summary: %w", err)
	}

	var summary map[string]interface{}
	if err := json.Unmarshal(body, &summary); err != nil {
		return fmt.Errorf("failed to parse summary: %w", err)
	}
	logger.Get().Info(ctx, "analytics summary", logger.Any("summary", summary))

	resp, err = client.Get(config.BaseURL + "/stats")
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}
	body, err = readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	var svcStats map[string]interface{}
	if err := json.Unmarshal(body, &svcStats); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}
	logger.Get().Info(ctx, "service stats", logger.Any("stats", svcStats))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("proposalsCreated", stats.ProposalsCreated),
		logger.Int("sessionsRun", stats.SessionsRun),
		logger.Int("eventsSent", int(stats.EventsSent)),
		logger.Int("eventsFailed", int(stats.EventsFailed)),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
