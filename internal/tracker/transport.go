package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/propely/engage/internal/domain/event"
)

// Transport delivers one event to the collection endpoint. Delivery is
// best-effort: the session logs and discards failures, never retries.
type Transport interface {
	Send(ctx context.Context, e event.Event) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, e event.Event) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, e event.Event) error {
	return f(ctx, e)
}

const defaultSendTimeout = 5 * time.Second

// HTTPTransport posts one JSON event per call to a collector's /events
// endpoint.
type HTTPTransport struct {
	url    string
	client *http.Client
}

// NewHTTPTransport creates a transport targeting baseURL's /events endpoint.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &HTTPTransport{
		url:    strings.TrimRight(baseURL, "/") + "/events",
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the event. Any non-2xx status is a failure.
func (t *HTTPTransport) Send(ctx context.Context, e event.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", e.EventID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting event %s: %w", e.EventID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("collector responded %d for event %s", resp.StatusCode, e.EventID)
	}
	return nil
}

// Enqueuer is the queue surface a co-located session needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, e event.Event) bool
}

// QueueTransport bypasses HTTP and feeds events straight into the in-process
// collection queue.
type QueueTransport struct {
	queue Enqueuer
}

// NewQueueTransport creates a transport over an in-process queue.
func NewQueueTransport(q Enqueuer) *QueueTransport {
	return &QueueTransport{queue: q}
}

// Send enqueues the event; a full or closed queue is a failure.
func (t *QueueTransport) Send(ctx context.Context, e event.Event) error {
	if !t.queue.Enqueue(ctx, e) {
		return errors.New("event queue rejected event")
	}
	return nil
}
