// Package remote talks to the lecture, doubt-clearing and video
// recommendation services over JSON/HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Default service endpoints.
const (
	DefaultSummarizeURL = "http://127.0.0.1:8000/summarize_pages"
	DefaultDoubtURL     = "http://127.0.0.1:8000/doubt_clear"
	DefaultVideosURL    = "http://127.0.0.1:8090/extract_topics"
)

var (
	// ErrEmptyResponse is returned when a service answers without content.
	ErrEmptyResponse = errors.New("empty response")

	// ErrEmptyText is returned when a request has nothing to send.
	ErrEmptyText = errors.New("text cannot be empty")
)

// APIError is a failed service call: a non-200 HTTP status, or a 200
// whose body reports an error.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d) from %s: %s", e.Status, e.Endpoint, e.Message)
}

// Config holds the client settings.
type Config struct {
	SummarizeURL string
	DoubtURL     string
	VideosURL    string

	// Timeout bounds every request. Defaults to 2 minutes; summaries are slow.
	Timeout time.Duration

	// RequestsPerMinute limits outgoing calls; 0 disables limiting.
	RequestsPerMinute int
}

// Client calls the remote services.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// New returns a Client. Empty URLs fall back to the defaults.
func New(cfg Config) *Client {
	if cfg.SummarizeURL == "" {
		cfg.SummarizeURL = DefaultSummarizeURL
	}
	if cfg.DoubtURL == "" {
		cfg.DoubtURL = DefaultDoubtURL
	}
	if cfg.VideosURL == "" {
		cfg.VideosURL = DefaultVideosURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

// post sends body as JSON to url and decodes the reply into out.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("API error", "url", url, "status", resp.StatusCode, "body", string(data))
		return &APIError{Endpoint: url, Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	log.Debug("API response", "url", url, "bytes", len(data), "took", time.Since(start))
	return nil
}
