package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// WithRequestID returns ctx carrying id; calls made with it send id as
// X-Request-Id instead of a fresh one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the ID stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TokenSource supplies the bearer credential at call time.
type TokenSource interface {
	Token() string
}

// CallStat describes one finished backend call.
type CallStat struct {
	Route    string
	Method   string
	Outcome  string
	Duration time.Duration
}

// Observer receives a CallStat for every call, e.g. a metrics recorder.
type Observer interface {
	ObserveCall(stat CallStat)
}

// Request describes a single backend call.
type Request struct {
	Method string
	Path   string
	// Route is the path template used for metrics, e.g. "/orders/{id}".
	Route string
	Body  interface{}
	// Fallback is the user-facing message when the error body carries none.
	Fallback string
}

// Client is the only component that talks to the backend.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func()
	observer       Observer
	newRequestID   func() string
	nowFunc        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver attaches a per-call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithUnauthorizedHook registers the function run on every 401.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New returns a Client for the backend rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         http.DefaultClient,
		tokens:       tokens,
		newRequestID: uuid.NewString,
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs req and decodes a 2xx JSON body into out (out may be nil).
// Failures come back as *ConnectionError, *AuthError or *RequestError.
func (c *Client) Call(ctx context.Context, req Request, out interface{}) error {
	start := c.nowFunc()
	err := c.do(ctx, req, out)
	if c.observer != nil {
		route := req.Route
		if route == "" {
			route = req.Path
		}
		c.observer.ObserveCall(CallStat{
			Route:    route,
			Method:   req.Method,
			Outcome:  Outcome(err),
			Duration: c.nowFunc().Sub(start),
		})
	}
	return err
}

func (c *Client) do(ctx context.Context, req Request, out interface{}) error {
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = c.newRequestID()
	}
	httpReq.Header.Set("X-Request-Id", requestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		slog.Warn("backend unreachable", "method", req.Method, "path", req.Path, "request_id", requestID, "error", err)
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		slog.Info("backend rejected credential", "method", req.Method, "path", req.Path, "request_id", requestID)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &AuthError{Message: errorMessage(payload, req.Fallback)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &RequestError{Status: resp.StatusCode, Message: errorMessage(payload, req.Fallback)}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &ConnectionError{Err: fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)}
	}
	return nil
}
