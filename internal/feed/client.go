package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxBody = 64 << 10

// Client fetches records from the feed's HTTP endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a Client for url. Every fetch is bounded by timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads and parses the current record.
func (c *Client) Fetch(ctx context.Context) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Record{}, fmt.Errorf("feed: create request: %w", err)
	}
	req.Header.Set("User-Agent", "fitrelay/1")
	// Tunnels in front of the feed otherwise answer with an interstitial page.
	req.Header.Set("ngrok-skip-browser-warning", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Record{}, fmt.Errorf("feed: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("feed: %s returned %d", c.url, resp.StatusCode)
	}

	rec, err := ParseRecord(string(body))
	if err != nil {
		return Record{}, fmt.Errorf("feed: %w", err)
	}
	return rec, nil
}
