package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/id"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// APIError is the error body the host answers with
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("host answered %d", e.Status)
	}
	return fmt.Sprintf("host answered %d: %s", e.Status, e.Message)
}

// ClientConfig configures the REST client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	// Trace tags every request with a fresh X-Trace-ID
	Trace bool
}

// Client calls the host REST API
type Client struct {
	resty *resty.Client
	trace bool
}

// NewClient creates a REST client for the host at cfg.BaseURL
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("User-Agent", "windowctl/1.0").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &Client{resty: r, trace: cfg.Trace}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.resty.R().SetContext(ctx).SetError(&APIError{})
	if c.trace {
		req.SetHeader(tracing.HeaderTraceID, id.NewToken().String())
	}
	return req
}

func (c *Client) do(req *resty.Request, method, path string) (json.RawMessage, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.Status = resp.StatusCode()
		return nil, apiErr
	}
	return json.RawMessage(resp.Body()), nil
}

// Health returns the host's health report
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.do(c.request(ctx), http.MethodGet, "/health")
}

// Sessions lists open sessions
func (c *Client) Sessions(ctx context.Context) (json.RawMessage, error) {
	return c.do(c.request(ctx), http.MethodGet, "/sessions")
}

// Session returns one session
func (c *Client) Session(ctx context.Context, sessionID string) (*types.SessionView, error) {
	var view types.SessionView
	req := c.request(ctx).SetPathParam("id", sessionID).SetResult(&view)
	if _, err := c.do(req, http.MethodGet, "/sessions/{id}"); err != nil {
		return nil, err
	}
	return &view, nil
}

// Open opens or focuses a session window opened by the primary window
func (c *Client) Open(ctx context.Context, sessionID, value string) (*types.SessionView, error) {
	var view types.SessionView
	req := c.request(ctx).SetBody(types.OpenRequest{ID: sessionID, Value: value}).SetResult(&view)
	if _, err := c.do(req, http.MethodPost, "/sessions"); err != nil {
		return nil, err
	}
	return &view, nil
}

// Update sets a session's value and pushes it to its window
func (c *Client) Update(ctx context.Context, sessionID, value string) (json.RawMessage, error) {
	req := c.request(ctx).SetPathParam("id", sessionID).SetBody(types.ValueRequest{Value: value})
	return c.do(req, http.MethodPut, "/sessions/{id}/value")
}

// Close closes a session window
func (c *Client) Close(ctx context.Context, sessionID string) (json.RawMessage, error) {
	req := c.request(ctx).SetPathParam("id", sessionID)
	return c.do(req, http.MethodDelete, "/sessions/{id}")
}

// Windows lists tracked windows
func (c *Client) Windows(ctx context.Context) (json.RawMessage, error) {
	return c.do(c.request(ctx), http.MethodGet, "/windows")
}

// CreateWindow opens a window from a full configuration
func (c *Client) CreateWindow(ctx context.Context, cfg types.WindowConfig) (*types.SessionView, error) {
	var view types.SessionView
	req := c.request(ctx).SetBody(cfg).SetResult(&view)
	if _, err := c.do(req, http.MethodPost, "/windows"); err != nil {
		return nil, err
	}
	return &view, nil
}

// CloseWindow closes a window by session id or window id
func (c *Client) CloseWindow(ctx context.Context, target string) (json.RawMessage, error) {
	req := c.request(ctx).SetPathParam("id", target)
	return c.do(req, http.MethodDelete, "/windows/{id}")
}

// Broadcast publishes an event-bus message from the host
func (c *Client) Broadcast(ctx context.Context, b types.BroadcastRequest) (json.RawMessage, error) {
	return c.do(c.request(ctx).SetBody(b), http.MethodPost, "/broadcast")
}

// Pages lists the pages windows can load
func (c *Client) Pages(ctx context.Context) (json.RawMessage, error) {
	return c.do(c.request(ctx), http.MethodGet, "/pages")
}
