package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Dashboard receives lead summaries.
type Dashboard interface {
	Post(ctx context.Context, p DashboardPayload) error
}

// DashboardClient posts payloads as JSON to a webhook URL.
type DashboardClient struct {
	URL        string
	HTTPClient *http.Client
}

// NewDashboardClient creates a client for url.
func NewDashboardClient(url string, opts ...func(*DashboardClient)) *DashboardClient {
	c := &DashboardClient{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) func(*DashboardClient) {
	return func(c *DashboardClient) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// Post sends p. Any non-2xx response is an error; there are no retries.
func (c *DashboardClient) Post(ctx context.Context, p DashboardPayload) error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("dashboard url is not set")
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("dashboard non-2xx: %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
