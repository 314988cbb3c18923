// Package assistant is a small authenticated JSON client for the external
// assistant service (health, analyze and sync endpoints).
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/triage"
)

const (
	serviceName = "assistant"

	// DefaultCaptureType is sent as the analyze "type" when the caller has none.
	DefaultCaptureType = "capture"

	maxResponseBytes = 1 << 20
)

// Client talks to the assistant service. The zero value is not usable; use New.
type Client struct {
	cfg     config.AssistantConfig
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithClock overrides the source of request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a client for the configured assistant service.
func New(cfg config.AssistantConfig, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  &http.Client{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the base URL and API key are set.
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// AnalyzeResponse is the reply of POST /analyze.
type AnalyzeResponse struct {
	Status      string              `json:"status"`
	Message     string              `json:"message,omitempty"`
	Analysis    *triage.Analysis    `json:"analysis,omitempty"`
	Suggestions []triage.Suggestion `json:"suggestions,omitempty"`
}

// SyncResponse is the reply of POST /sync.
type SyncResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type analyzeRequest struct {
	UserID    string `json:"user_id,omitempty"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type syncRequest struct {
	UserID    string `json:"user_id,omitempty"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// Health returns nil iff GET /health answers with a 2xx status.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodGet, "/health", nil)
	return err
}

// Analyze asks the service to classify content. A reply is accepted only if
// its status is "success" and its analysis stays inside the closed
// vocabularies; anything else is a REMOTE_SERVICE error.
func (c *Client) Analyze(ctx context.Context, content, captureType string) (*AnalyzeResponse, error) {
	if strings.TrimSpace(captureType) == "" {
		captureType = DefaultCaptureType
	}
	payload, err := c.request(ctx, http.MethodPost, "/analyze", analyzeRequest{
		UserID:    c.cfg.UserID,
		Content:   content,
		Type:      captureType,
		Timestamp: c.timestamp(),
	})
	if err != nil {
		return nil, err
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errors.NewRemoteService(serviceName, 0, fmt.Errorf("decode analyze response: %w", err))
	}
	if resp.Status != "success" {
		return nil, errors.NewRemoteService(serviceName, 0, fmt.Errorf("analyze status %q: %s", resp.Status, resp.Message))
	}
	if resp.Analysis == nil || !resp.Analysis.Valid() {
		return nil, errors.NewRemoteService(serviceName, 0, fmt.Errorf("analyze response has no valid analysis"))
	}
	for _, s := range resp.Suggestions {
		if !s.Valid() {
			return nil, errors.NewRemoteService(serviceName, 0, fmt.Errorf("analyze response has invalid suggestion type %q", s.Type))
		}
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []triage.Suggestion{}
	}
	return &resp, nil
}

// Sync pushes arbitrary data to the service.
func (c *Client) Sync(ctx context.Context, data any) (*SyncResponse, error) {
	payload, err := c.request(ctx, http.MethodPost, "/sync", syncRequest{
		UserID:    c.cfg.UserID,
		Data:      data,
		Timestamp: c.timestamp(),
	})
	if err != nil {
		return nil, err
	}

	var resp SyncResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errors.NewRemoteService(serviceName, 0, fmt.Errorf("decode sync response: %w", err))
	}
	if resp.Status == "error" {
		return nil, errors.NewRemoteService(serviceName, 0, fmt.Errorf("sync rejected: %s", resp.Message))
	}
	return &resp, nil
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	if !c.Configured() {
		return nil, errors.NewConfiguration("assistant not configured: set OPENCLAW_API_URL and OPENCLAW_API_KEY")
	}

	reqCtx := ctx
	if timeout := c.cfg.Timeout(); timeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > timeout {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("encode request body: %w", err))
		}
		reqBody = buf
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.cfg.UserID != "" {
		req.Header.Set("X-User-ID", c.cfg.UserID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewRemoteService(serviceName, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewRemoteService(serviceName, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewRemoteService(serviceName, resp.StatusCode, nil)
	}
	return payload, nil
}
