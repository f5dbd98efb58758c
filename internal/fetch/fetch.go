// Package fetch provides the shared HTTP JSON client used by the venue
// discovery and stats clients.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client wraps an http.Client with JSON decoding and response header
// capture.
type Client struct {
	HTTP *http.Client
	// OnResponse, when set, observes every successful response. Used to
	// scrape rate limit headers.
	OnResponse func(*http.Response)
}

func NewClient() *Client {
	return &Client{HTTP: &http.Client{Timeout: defaultTimeout}}
}

// GetJSON issues a GET request and decodes the JSON body into out.
// Non-2xx responses are returned as errors with a body excerpt.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if c.OnResponse != nil {
		c.OnResponse(resp)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
