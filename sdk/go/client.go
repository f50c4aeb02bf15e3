// Package lablinesdk is a minimal HTTP client for the labline API.
package lablinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running labline server.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Period represents one reporting window and its review status.
type Period struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Status   string `json:"status"`
}

// Run represents one pipeline invocation.
type Run struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Drafted    int    `json:"drafted"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

// RunFailure is one per-period failure inside a run.
type RunFailure struct {
	Period  string `json:"period"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RunDetail bundles a run with its failures.
type RunDetail struct {
	Run      Run          `json:"run"`
	Failures []RunFailure `json:"failures"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListPeriods returns the period registry.
func (c *Client) ListPeriods(ctx context.Context) ([]Period, error) {
	var resp []Period
	err := c.do(ctx, http.MethodGet, "v0/periods", nil, &resp)
	return resp, err
}

// GetPeriod fetches one period by name.
func (c *Client) GetPeriod(ctx context.Context, name string) (Period, error) {
	var resp Period
	err := c.do(ctx, http.MethodGet, "v0/periods/"+url.PathEscape(name), nil, &resp)
	return resp, err
}

// Promote approves a drafted period summary.
func (c *Client) Promote(ctx context.Context, name string) (Period, error) {
	var resp Period
	err := c.do(ctx, http.MethodPost, "v0/periods/"+url.PathEscape(name)+"/promote", nil, &resp)
	return resp, err
}

// ListRuns returns recent pipeline runs.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	endpoint := "v0/runs"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Run
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetRun fetches a run with its failures.
func (c *Client) GetRun(ctx context.Context, id string) (RunDetail, error) {
	var resp RunDetail
	err := c.do(ctx, http.MethodGet, "v0/runs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
