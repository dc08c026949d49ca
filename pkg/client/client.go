// Package client implements the HTTP client for a local model-runner
// daemon exposing an OpenAI-compatible inference API.
//
// A Client owns one connection pool for its lifetime and is safe for
// concurrent use; every call carries a context for cancellation. Endpoint
// groups mirror the API surface:
//
//	c := client.New()
//	resp, err := c.Chat().Completions().Create(ctx, "ai/gemma3", msgs, nil)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/dmr-go/pkg/api"
	"github.com/rhuss/dmr-go/pkg/config"
	"github.com/rhuss/dmr-go/pkg/debug"
	"github.com/rhuss/dmr-go/pkg/observability"
)

// Client performs HTTP requests against a model-runner daemon.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	metrics    bool
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the engine endpoint. Trailing slashes are stripped.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithAPIKey sets the bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to tune the
// transport or connection pool.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the timeout for non-streaming requests. Streaming
// requests are governed by context cancellation instead.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithoutMetrics disables Prometheus instrumentation for this client.
func WithoutMetrics() Option {
	return func(c *Client) { c.metrics = false }
}

// New creates a Client for the local model-runner daemon. Without options
// it talks to the default llama.cpp engine endpoint with no API key.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    config.DefaultBaseURL,
		metrics:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c
}

// NewFromConfig creates a Client from a loaded configuration and
// initializes debug logging from its settings.
func NewFromConfig(cfg *config.Config) *Client {
	debug.Init(cfg.Debug, cfg.LogLevel)

	opts := []Option{
		WithBaseURL(cfg.BaseURL),
		WithAPIKey(cfg.APIKey),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout.AsDuration()))
	}
	if !cfg.Metrics.Enabled {
		opts = append(opts, WithoutMetrics())
	}
	return New(opts...)
}

// BaseURL returns the normalized engine endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// Chat returns the chat endpoint group.
func (c *Client) Chat() *Chat { return &Chat{client: c} }

// Completions returns the plain-completion endpoint group.
func (c *Client) Completions() *Completions { return &Completions{client: c} }

// Embeddings returns the embeddings endpoint group.
func (c *Client) Embeddings() *Embeddings { return &Embeddings{client: c} }

// Models returns the model-management endpoint group.
func (c *Client) Models() *Models { return &Models{client: c} }

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// serverBaseURL returns the base URL with the engine path segment removed.
// Model create/delete are server-level concerns, not engine-level ones.
func (c *Client) serverBaseURL() string {
	if i := strings.Index(c.baseURL, "/engines/"); i >= 0 {
		return c.baseURL[:i]
	}
	return c.baseURL
}

// doJSON performs one JSON request/response exchange. payload may be nil
// for body-less methods. Any non-2xx status fails immediately; there are
// no retries.
func (c *Client) doJSON(ctx context.Context, method, url string, payload map[string]any, endpoint, model string) (map[string]any, error) {
	var bodyReader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, api.NewInvalidRequestError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
		}
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, api.NewInvalidRequestError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	c.setHeaders(httpReq, payload != nil)

	debug.Log("client", "request", "method", method, "url", url, "endpoint", endpoint)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(endpoint, model, "error", start)
		return nil, api.NewTransportError(err)
	}
	defer httpResp.Body.Close()

	c.observe(endpoint, model, statusClass(httpResp.StatusCode), start)
	debug.Log("client", "response", "url", url, "status", httpResp.StatusCode)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var decoded map[string]any
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse response: %s", err.Error()))
	}
	return decoded, nil
}

// startStream sends a streaming request and returns the raw response body.
// The HTTP client timeout is not applied because a stream can legitimately
// last longer than any fixed timeout; the context controls the request
// lifetime instead.
func (c *Client) startStream(ctx context.Context, url string, payload map[string]any, endpoint, model string) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, api.NewInvalidRequestError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewInvalidRequestError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	c.setHeaders(httpReq, true)
	httpReq.Header.Set("Accept", "text/event-stream")

	debug.Log("streaming", "stream request", "url", url, "endpoint", endpoint)

	streamClient := &http.Client{
		Transport: c.httpClient.Transport,
	}

	start := time.Now()
	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		c.observe(endpoint, model, "error", start)
		return nil, api.NewTransportError(err)
	}

	c.observe(endpoint, model, statusClass(httpResp.StatusCode), start)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp)
	}

	return httpResp.Body, nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) observe(endpoint, model, status string, start time.Time) {
	if !c.metrics {
		return
	}
	observability.RequestsTotal.WithLabelValues(endpoint, model, status).Inc()
	observability.RequestDuration.WithLabelValues(endpoint, model).Observe(time.Since(start).Seconds())
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
