package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/nhle/taskhub/internal/credential"
)

// maxJitter bounds the random component added to each backoff delay.
const maxJitter = 1000 * time.Millisecond

// Client is a thin HTTP client for the task management REST API.
// It handles Bearer token authentication, JSON marshaling, and
// automatic retry with jittered exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	tokens     credential.TokenStore
	http       *resty.Client
	maxRetries int
	retryBase  time.Duration
	logger     *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithRetry sets the number of 429 retries and the backoff base delay.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if base > 0 {
			c.retryBase = base
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleep replaces the backoff sleeper. Tests use it to observe delays
// without waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithJitter replaces the jitter source.
func WithJitter(fn func(limit time.Duration) time.Duration) Option {
	return func(c *Client) { c.jitter = fn }
}

// NewClient creates a new API client. baseURL is the server root
// (e.g. https://tasks.example.com); requests go to baseURL + "/api" + path.
func NewClient(baseURL string, tokens credential.TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api",
		tokens:     tokens,
		http:       resty.New().SetTimeout(30 * time.Second),
		maxRetries: 3,
		retryBase:  time.Second,
		logger:     slog.Default(),
		sleep:      sleepContext,
		jitter:     randomJitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an authenticated GET and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, query url.Values, result any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, result, true)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result, true)
}

// Put performs an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, result, true)
}

// Patch performs an authenticated PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, result, true)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, result, true)
}

// PostPublic performs a POST without the Authorization header, for
// endpoints such as login and register.
func (c *Client) PostPublic(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result, false)
}

// Backoff returns the delay before retry number attempt (0-based):
// base * 2^attempt plus a random jitter below min(base, 1s). Capping the
// jitter at base keeps successive delays strictly increasing.
func (c *Client) Backoff(attempt int) time.Duration {
	limit := maxJitter
	if c.retryBase < limit {
		limit = c.retryBase
	}
	return c.retryBase*time.Duration(1<<uint(attempt)) + c.jitter(limit)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body any,
	result any,
	auth bool,
) error {
	var token string
	if auth {
		t, err := c.tokens.Token()
		if err != nil || t == "" {
			return ErrNoToken
		}
		token = t
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var (
		lastErr error
		prev    time.Duration
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req := c.http.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json")
		if len(query) > 0 {
			req.SetQueryParamsFromValues(query)
		}
		if payload != nil {
			req.SetHeader("Content-Type", "application/json").SetBody(payload)
		}
		if auth {
			req.SetAuthToken(token)
		}

		resp, err := req.Execute(method, c.baseURL+path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		status := resp.StatusCode()
		respBody := resp.Body()

		if status == http.StatusTooManyRequests {
			lastErr = newAPIError(method, path, status, respBody)
			if attempt == c.maxRetries {
				break
			}

			// Retry-After may raise the delay, but each delay stays
			// strictly longer than the one before it.
			wait := max(c.Backoff(attempt), retryAfter(resp.Header()), prev+time.Millisecond)
			prev = wait
			c.logger.Debug("rate limited, backing off",
				"method", method, "path", path,
				"attempt", attempt+1, "wait", wait)

			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			var eb errorBody
			_ = json.Unmarshal(respBody, &eb)
			msg := eb.text()
			if msg == "" {
				msg = ErrNoToken.Error()
			}
			return &AuthError{Status: status, Message: msg}
		}

		if status < 200 || status >= 300 {
			return newAPIError(method, path, status, respBody)
		}

		// No content to parse (e.g. 204).
		if result == nil || status == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := decodeBody(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// decodeBody unmarshals respBody into result, unwrapping a {"data": ...}
// envelope when the result does not itself expect one.
func decodeBody(respBody []byte, result any) error {
	if raw, ok := result.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], respBody...)
		return nil
	}

	var env struct {
		Data    json.RawMessage `json:"data"`
		Success *bool           `json:"success"`
	}
	if respBody[0] == '{' && json.Unmarshal(respBody, &env) == nil &&
		env.Success != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, result)
	}
	return json.Unmarshal(respBody, result)
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	var eb errorBody
	msg := ""
	if json.Unmarshal(body, &eb) == nil {
		msg = eb.text()
	}
	if msg == "" {
		msg = fmt.Sprintf("request %s %s failed with status %d", method, path, status)
	}
	return &APIError{Status: status, Method: method, Path: path, Message: msg}
}

// retryAfter reads the Retry-After header in seconds.
func retryAfter(h http.Header) time.Duration {
	if header := h.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

// IsCanceled reports whether err came from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
