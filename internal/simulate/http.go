package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/propely/engage/internal/domain/event"
	"github.com/propely/engage/internal/tracker"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(url string) (*http.Response, error) {
	return c.client.Get(url)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// countingTransport wraps a tracker transport to count deliveries across all
// simulated sessions.
type countingTransport struct {
	next   tracker.Transport
	sent   *int64
	failed *int64
}

func newCountingTransport(baseURL string, timeout time.Duration, stats *Stats) *countingTransport {
	return &countingTransport{
		next:   tracker.NewHTTPTransport(baseURL, timeout),
		sent:   &stats.EventsSent,
		failed: &stats.EventsFailed,
	}
}

func (t *countingTransport) Send(ctx context.Context, e event.Event) error {
	if err := t.next.Send(ctx, e); err != nil {
		atomic.AddInt64(t.failed, 1)
		return err
	}
	atomic.AddInt64(t.sent, 1)
	return nil
}
