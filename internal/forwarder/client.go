package forwarder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/telhawk-systems/telhawk-sensor/internal/metrics"
)

// ErrNotConfigured is returned when no central API URL is set.
var ErrNotConfigured = errors.New("central API URL not configured")

// maxResponseBytes bounds how much of an upstream reply is retained.
const maxResponseBytes = 4 << 20

// StatusError reports a non-2xx reply from the central API.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("central API response status %d", e.StatusCode)
}

// Result is a successful upstream reply.
type Result struct {
	StatusCode int
	Body       []byte
}

// Client posts individual EVE events to the central collection API.
type Client struct {
	url        string
	source     string
	httpClient *http.Client
}

// New returns a Client posting to url, the full log endpoint
// (e.g. http://central:8000/log). source labels metrics.
func New(url, source string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		source: source,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// URL returns the endpoint events are posted to.
func (c *Client) URL() string {
	return c.url
}

// Forward posts one JSON document. Transport failures are wrapped; a non-2xx
// reply is returned as *StatusError.
func (c *Client) Forward(ctx context.Context, body []byte) (*Result, error) {
	if c == nil || c.url == "" {
		return nil, ErrNotConfigured
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(request)
	metrics.ForwardDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EventsForwarded.WithLabelValues(c.source, "transport_error").Inc()
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.EventsForwarded.WithLabelValues(c.source, "transport_error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.EventsForwarded.WithLabelValues(c.source, "upstream_error").Inc()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	metrics.EventsForwarded.WithLabelValues(c.source, "success").Inc()
	return &Result{StatusCode: resp.StatusCode, Body: respBody}, nil
}
