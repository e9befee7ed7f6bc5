// Package apiclient is the JSON-over-HTTP plumbing shared by the model
// provider adapters. It maps provider failures onto the domain errors the
// capability registry understands: an unreachable or overloaded provider is
// domain.ErrCapabilityUnavailable, a rejected request is not.
package apiclient

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

	"github.com/custodia-labs/memex/internal/core/domain"
)

// maxResponseBytes bounds a single response body. A large embedding batch
// is a few megabytes of JSON.
const maxResponseBytes = 64 << 20

// Client sends JSON requests to one provider.
type Client struct {
	http        *http.Client
	provider    string
	baseURL     string
	header      http.Header
	unavailable map[int]bool
}

// Option configures a Client.
type Option func(*Client)

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithBearer sends token as a bearer credential. An empty token sends none.
func WithBearer(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithUnavailableStatus marks extra status codes as outages. Ollama answers
// 404 for a model that has not been pulled yet.
func WithUnavailableStatus(codes ...int) Option {
	return func(c *Client) {
		for _, code := range codes {
			c.unavailable[code] = true
		}
	}
}

// New returns a client for provider rooted at baseURL.
func New(provider, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: timeout},
		provider:    provider,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		header:      make(http.Header),
		unavailable: map[int]bool{http.StatusTooManyRequests: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends in as JSON to path and decodes the response into out.
// out may be nil, or a *json.RawMessage to keep the body undecoded.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

// Get fetches path and decodes the response into out, which may be nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, http.NoBody, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", transportError(ctx, err))
	}

	if resp.StatusCode != http.StatusOK {
		msg, ok := envelopeError(data)
		if !ok {
			msg = strings.TrimSpace(string(data))
		}
		return &StatusError{
			Provider:    c.provider,
			Status:      resp.StatusCode,
			Message:     msg,
			unavailable: c.unavailable[resp.StatusCode] || resp.StatusCode >= http.StatusInternalServerError,
		}
	}
	if msg, ok := envelopeError(data); ok {
		return fmt.Errorf("%s error: %s", c.provider, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-200 response.
type StatusError struct {
	Provider string
	Status   int
	Message  string

	unavailable bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Status, e.Message)
}

// Is reports outages as domain.ErrCapabilityUnavailable.
func (e *StatusError) Is(target error) bool {
	return e.unavailable && target == domain.ErrCapabilityUnavailable
}

// envelopeError pulls the message out of {"error": "..."} or
// {"error": {"message": "..."}}.
func envelopeError(data []byte) (string, bool) {
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(data, &env) != nil || len(env.Error) == 0 || string(env.Error) == "null" {
		return "", false
	}

	var s string
	if json.Unmarshal(env.Error, &s) == nil {
		return s, s != ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(env.Error, &obj) == nil && obj.Message != "" {
		return obj.Message, true
	}
	return string(env.Error), true
}

// transportError marks connection failures as capability outages. A
// deadline is left alone so callers can tell a slow call from a dead one.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return fmt.Errorf("%w: send request: %w", domain.ErrCapabilityUnavailable, err)
}
