// Package nomad retrieves experiment records from a NOMAD Oasis archive API.
package nomad

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/utils"
)

const userAgent = "expadvisor/1.0"

// Session is an authenticated connection. It is passed to every call.
type Session struct {
	BaseURL string
	Token   string
	User    string
}

// StatusError is a non-2xx API response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed when repeated
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Entry is one result item, kept as raw JSON and read by path
type Entry struct {
	raw []byte
}

// NewEntry wraps a raw JSON object
func NewEntry(raw []byte) Entry {
	return Entry{raw: raw}
}

// Get resolves a gjson path such as "archive.data.recipe_steps.1.time"
func (e Entry) Get(path string) gjson.Result {
	return gjson.GetBytes(e.raw, path)
}

// Archive resolves path under the entry's "archive" object, or under the
// entry itself when it has none
func (e Entry) Archive(path string) gjson.Result {
	if a := e.Get("archive"); a.IsObject() {
		return a.Get(path)
	}
	return e.Get(path)
}

// Client talks to the API with rate limiting and retries
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    utils.BackoffStrategy
	maxRetries int
	pageSize   int
	breaker    *breaker
	log        *slog.Logger
}

// Breaker defaults: consecutive server failures that open an endpoint, and
// how long it stays open
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 30 * time.Second
)

// NewClient creates a client from configuration
func NewClient(cfg *config.Nomad) (*Client, error) {
	timeout, err := cfg.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := int(math.Max(1, math.Ceil(cfg.RequestsPerSecond)))
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = 100
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		backoff:    utils.NewExponentialBackoff(500*time.Millisecond, 10*time.Second, 2.0, true),
		maxRetries: cfg.MaxRetries,
		pageSize:   pageSize,
		breaker:    newBreaker(DefaultBreakerThreshold, DefaultBreakerCooldown),
		log:        logger.Component("nomad"),
	}, nil
}

// WithBackoff replaces the retry delay strategy
func (c *Client) WithBackoff(b utils.BackoffStrategy) *Client {
	c.backoff = b
	return c
}

// WithBreaker replaces the circuit breaker settings. A threshold below 1
// disables it.
func (c *Client) WithBreaker(threshold int, cooldown time.Duration) *Client {
	c.breaker = newBreaker(threshold, cooldown)
	return c
}

// CircuitState reports the breaker state of an endpoint path such as
// "/entries/archive/query"
func (c *Client) CircuitState(path string) CircuitState {
	return c.breaker.stateOf(path)
}

// Authenticate exchanges credentials for an access token
func (c *Client) Authenticate(ctx context.Context, creds config.Credentials) (*Session, error) {
	q := url.Values{}
	q.Set("username", creds.Username)
	q.Set("password", creds.Password)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodGet, c.baseURL+"/auth/token?"+q.Encode(), "", nil, &body)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("login failed: response has no access token")
	}
	c.log.Info("login successful", "user", creds.Username)
	return &Session{BaseURL: c.baseURL, Token: body.AccessToken, User: creds.Username}, nil
}

// Query posts query to path and follows pagination.next_page_after_value
// until the last page. The caller's map is not modified.
func (c *Client) Query(ctx context.Context, s *Session, path string, query map[string]any) ([]Entry, error) {
	if s == nil || s.Token == "" {
		return nil, fmt.Errorf("query %s: not authenticated", path)
	}
	q := make(map[string]any, len(query)+1)
	for k, v := range query {
		q[k] = v
	}
	pagination := map[string]any{"page_size": c.pageSize}
	q["pagination"] = pagination

	var (
		out   []Entry
		pages int
	)
	for {
		body, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("marshal query: %w", err)
		}
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodPost, s.BaseURL+path, s.Token, body, &raw); err != nil {
			return nil, fmt.Errorf("query %s page %d: %w", path, pages+1, err)
		}
		pages++

		data := gjson.GetBytes(raw, "data")
		if data.Exists() && !data.IsArray() {
			return nil, fmt.Errorf("query %s page %d: data is not an array", path, pages)
		}
		for _, item := range data.Array() {
			out = append(out, NewEntry([]byte(item.Raw)))
		}

		next := gjson.GetBytes(raw, "pagination.next_page_after_value").String()
		if next == "" {
			break
		}
		pagination["page_after_value"] = next
	}
	c.log.Debug("query complete", "path", path, "pages", pages, "entries", len(out))
	return out, nil
}

func (c *Client) do(ctx context.Context, method, target, token string, body []byte, out any) error {
	retryable := func(err error) bool {
		if errors.Is(err, ErrCircuitOpen) {
			return false
		}
		var se *StatusError
		if errors.As(err, &se) {
			return se.Temporary()
		}
		return ctx.Err() == nil
	}
	attempt := 0
	return utils.Retry(ctx, c.backoff, c.maxRetries+1, retryable, func() error {
		attempt++
		if attempt > 1 {
			c.log.Debug("retrying request", "method", method, "path", redact(target), "attempt", attempt)
		}
		return c.guarded(ctx, method, target, token, body, out)
	})
}

// guarded runs one request through the endpoint's circuit breaker
func (c *Client) guarded(ctx context.Context, method, target, token string, body []byte, out any) error {
	path := endpoint(target, c.baseURL)
	if !c.breaker.allow(path) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, path)
	}
	err := c.once(ctx, method, target, token, body, out)
	var se *StatusError
	switch {
	case err == nil:
		c.breaker.success(path)
	case errors.As(err, &se) && !se.Temporary():
		// a 4xx still proves the endpoint is up
		c.breaker.success(path)
	case ctx.Err() != nil:
	default:
		c.breaker.failure(path)
		if c.breaker.stateOf(path) == CircuitOpen {
			c.log.Warn("endpoint circuit opened", "path", path)
		}
	}
	return err
}

func (c *Client) once(ctx context.Context, method, target, token string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := string(b)
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		c.log.Warn("request returned non-2xx status",
			"method", method,
			"path", redact(target),
			"status_code", resp.StatusCode,
		)
		return &StatusError{Code: resp.StatusCode, Body: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// endpoint returns the request path relative to the API base, without query
func endpoint(target, base string) string {
	return strings.TrimPrefix(redact(target), base)
}

// redact drops the query string so credentials never reach the log
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
