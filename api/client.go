package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/galihrivanto/unipig/logging"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds a single round-trip.
	DefaultTimeout = 15 * time.Second

	// RequestIDHeader carries a per-request id for log correlation.
	RequestIDHeader = "X-Request-Id"
)

// Client posts JSON bodies to the faucet server.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout bounds each request; zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNoop(l) }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: DefaultTimeout,
		logger:  logging.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post issues one POST of body to endpoint. A 2xx response is decoded into out
// when out is non-nil; an empty body leaves out untouched. Non-2xx responses
// yield *RequestError and transport failures *NetworkError. Post never retries.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s body: %w", endpoint, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Printf("POST %s [%s] failed: %v", endpoint, requestID, err)
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Printf("POST %s [%s] %d in %s", endpoint, requestID, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &RequestError{Status: resp.StatusCode, StatusText: statusText(resp)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text == "" || text == resp.Status {
		return http.StatusText(resp.StatusCode)
	}
	return text
}
