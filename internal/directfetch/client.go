// Package directfetch implements netwatch.HTTPFetcher: a direct,
// out-of-browser HTTP fetch used by the Response Capturer's font re-fetch
// path, since the browser may decode or transcode font bodies in ways that
// corrupt the on-wire bytes needed for faithful replay.
package directfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felipeplets/percy-cli/internal/netwatch"
)

// Client is a netwatch.HTTPFetcher backed by net/http.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a Client with the given timeout. A zero timeout
// disables the deadline.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch implements netwatch.HTTPFetcher.
func (c *Client) Fetch(ctx context.Context, url string, auth *netwatch.Authorization) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("directfetch: build request: %w", err)
	}

	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directfetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("directfetch: %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("directfetch: read body: %w", err)
	}
	return body, nil
}
