// Package api is the HTTP client for the focus-session and habit endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ht-go/internal/ht"
	"ht-go/internal/model"
)

// DefaultTimeout bounds each request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client talks to the backend over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  ht.Logger
}

var (
	_ ht.SessionAPI = (*Client)(nil)
	_ ht.HabitAPI   = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l ht.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for the backend at baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https: %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  ht.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ActiveSession returns the open session, or nil when the backend answers 204.
func (c *Client) ActiveSession(ctx context.Context) (*model.FocusSession, error) {
	var s model.FocusSession
	status, err := c.do(ctx, http.MethodGet, "/api/focus-sessions/active", "", nil, &s)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &s, nil
}

func (c *Client) StartSession(ctx context.Context, req ht.StartSessionRequest) (*model.FocusSession, error) {
	var s model.FocusSession
	if _, err := c.do(ctx, http.MethodPost, "/api/focus-sessions", "", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) PauseSession(ctx context.Context, id string) (*model.FocusSession, error) {
	return c.sessionAction(ctx, id, model.ActionPause, nil)
}

func (c *Client) ResumeSession(ctx context.Context, id string) (*model.FocusSession, error) {
	return c.sessionAction(ctx, id, model.ActionResume, nil)
}

func (c *Client) CompleteSession(ctx context.Context, id string, notes *string) (*model.FocusSession, error) {
	var body any
	if notes != nil {
		body = CompleteSessionRequest{Notes: notes}
	}
	return c.sessionAction(ctx, id, model.ActionComplete, body)
}

func (c *Client) CancelSession(ctx context.Context, id string) (*model.FocusSession, error) {
	return c.sessionAction(ctx, id, model.ActionCancel, nil)
}

func (c *Client) sessionAction(ctx context.Context, id string, action model.SessionAction, body any) (*model.FocusSession, error) {
	var s model.FocusSession
	path := "/api/focus-sessions/" + id + "/" + string(action)
	if _, err := c.do(ctx, http.MethodPost, path, "", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListSessions(ctx context.Context, query string) (*model.Page[model.FocusSession], error) {
	var page model.Page[model.FocusSession]
	if _, err := c.do(ctx, http.MethodGet, "/api/focus-sessions", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) ListHabits(ctx context.Context, query string) (*model.Page[model.Habit], error) {
	var page model.Page[model.Habit]
	if _, err := c.do(ctx, http.MethodGet, "/api/habits", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetHabit(ctx context.Context, id string) (*model.Habit, error) {
	var h model.Habit
	if _, err := c.do(ctx, http.MethodGet, "/api/habits/"+id, "", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) CreateHabit(ctx context.Context, req ht.CreateHabitRequest) (*model.Habit, error) {
	var h model.Habit
	if _, err := c.do(ctx, http.MethodPost, "/api/habits", "", req, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) DeleteHabit(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/habits/"+id, "", nil, nil)
	return err
}

// do sends one request and decodes a 2xx body into out. query is an OData
// query string with or without its leading '?'. It returns the status code.
func (c *Client) do(ctx context.Context, method, path, query string, in, out any) (int, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = strings.TrimPrefix(query, "?")

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, newError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("%s %s: empty response body", method, path)
		}
		return resp.StatusCode, fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

// CompleteSessionRequest is the optional body of the complete action.
type CompleteSessionRequest struct {
	Notes *string `json:"notes,omitempty"`
}
