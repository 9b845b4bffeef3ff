package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient calls the relay control endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8766").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetStatus fetches /status.
func (c *HTTPClient) GetStatus(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.do(ctx, http.MethodGet, "/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetConfig fetches /config.
func (c *HTTPClient) GetConfig(ctx context.Context) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := c.do(ctx, http.MethodGet, "/config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FlushSession sends POST /session/flush and returns what was discarded.
func (c *HTTPClient) FlushSession(ctx context.Context) (*FlushResult, error) {
	var out FlushResult
	if err := c.do(ctx, http.MethodPost, "/session/flush", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
