// Package transport executes JSON requests against a remote HTTP service,
// retrying rate-limited and failing calls with exponential backoff.
package transport

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

	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 250 * time.Millisecond
)

// ErrInvalidRequest marks a request that could not be built. It is never retried.
var ErrInvalidRequest = errors.New("transport: invalid request")

var transportLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	transportLogger = l
}

// Request describes a single call. Path is joined to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	token       string
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken sets the credential sent as "Authorization: Bearer <token>".
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithMaxAttempts sets the total number of attempts, including the first. Default: 3.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the wait before the first retry. Default: 250ms.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithLogger replaces the package logger for this client.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepCtx,
		logger:      transportLogger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Backoff returns the wait after the given 0-based failed attempt.
func (c *Client) Backoff(attempt int) time.Duration {
	return c.baseDelay * time.Duration(1<<uint(attempt))
}

// Do sends req and decodes a 2xx JSON body into out (when out is non-nil).
// A 204 response succeeds without touching out.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("transport: marshal body: %w", err)
		}
	}

	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var lastErr *RemoteServiceError
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.Backoff(attempt-1)); err != nil {
				return fmt.Errorf("transport: backoff interrupted: %w", err)
			}
		}

		status, respBody, err := c.once(ctx, req, target, body)
		if errors.Is(err, ErrInvalidRequest) {
			return err
		}
		if err != nil {
			lastErr = &RemoteServiceError{Attempts: attempt + 1, Err: err}
			c.logger.Warn().Err(err).
				Str("method", req.Method).
				Str("path", req.Path).
				Int("attempt", attempt+1).
				Msg("Request failed")
			continue
		}

		if status >= 200 && status < 300 {
			if status == http.StatusNoContent || out == nil || len(bytes.TrimSpace(respBody)) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("transport: decode response: %w", err)
			}
			return nil
		}

		lastErr = &RemoteServiceError{Status: status, Body: string(respBody), Attempts: attempt + 1}
		if !IsRetryable(status) {
			return lastErr
		}
		c.logger.Warn().
			Str("method", req.Method).
			Str("path", req.Path).
			Int("status", status).
			Int("attempt", attempt+1).
			Msg("Retryable status")
	}

	return lastErr
}

func (c *Client) once(ctx context.Context, req Request, target string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
