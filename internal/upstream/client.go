// Package upstream implements the client for the external boost reseller
// API: a single form-encoded POST endpoint dispatched on an "action"
// parameter (add, status, balance, services) answering JSON. Transient
// failures are retried a bounded number of times with linear backoff behind
// a circuit breaker; logical rejections (an "error" field in the reply) are
// surfaced as-is and never retried.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/boostgw/boostgw/internal/circuitbreaker"
	"github.com/boostgw/boostgw/internal/models"
	"github.com/boostgw/boostgw/internal/storage"
)

// ErrUnavailable is returned once retries are exhausted or the breaker is
// open.
var ErrUnavailable = errors.New("upstream unavailable")

// TransientError is a network-level failure: timeout, connection error,
// non-2xx status. Eligible for retry.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectionError is a logical rejection by the reseller, carried in the
// "error" field of its reply. Never retried.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return "upstream rejected order: " + e.Message
}

type Config struct {
	Endpoint   string
	Key        string
	Timeout    time.Duration // per attempt, default 15s
	MaxRetries int           // attempts for transient failures, default 3
	Backoff    time.Duration // linear backoff base, default 500ms
	CacheTTL   time.Duration // catalog cache, default 1h
	Fallback   *Provider     // optional secondary provider
}

// Client talks to the reseller API.
type Client struct {
	primary    *Provider
	fallback   *Provider
	breaker    *circuitbreaker.CircuitBreaker
	cache      storage.Cache
	maxRetries int
	backoff    time.Duration
	cacheTTL   time.Duration
	sleepFn    func(time.Duration)
}

type Option func(*Client)

// WithSleepFunc overrides the sleep between retries. Intended for tests.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleepFn = fn }
}

// WithBreaker overrides the default circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func NewClient(cfg Config, cache storage.Cache, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cache == nil {
		cache = storage.NewMemoryCache()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	c := &Client{
		primary:    NewProvider("primary", cfg.Endpoint, cfg.Key, httpClient),
		fallback:   cfg.Fallback,
		breaker:    circuitbreaker.New(circuitbreaker.Config{}),
		cache:      cache,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		cacheTTL:   cfg.CacheTTL,
		sleepFn:    time.Sleep,
	}
	if c.fallback != nil && c.fallback.httpClient == nil {
		c.fallback.httpClient = httpClient
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AddOrder submits an order and returns the upstream order id. The reply is
// interpreted by field presence: "order" means accepted, "error" means
// rejected. Transient failures are retried against the primary, then the
// fallback provider (when configured and it has a service mapping for the
// platform).
func (c *Client) AddOrder(ctx context.Context, platform, serviceID, link string, qty int) (string, error) {
	params := url.Values{}
	params.Set("service", serviceID)
	params.Set("link", link)
	params.Set("quantity", strconv.Itoa(qty))

	body, err := c.callWithRetry(ctx, c.primary, "add", params)
	if err != nil && c.fallback != nil && isTransient(err) {
		if mapped, ok := c.fallback.MapService(platform, serviceID); ok {
			log.Printf("Primary provider failed, trying %s: %v", c.fallback.Name, err)
			params.Set("service", mapped)
			body, err = c.callWithRetry(ctx, c.fallback, "add", params)
		}
	}
	if err != nil {
		return "", err
	}

	var reply struct {
		Order json.RawMessage `json:"order"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("failed to parse upstream reply: %w", err)
	}

	if reply.Error != "" {
		return "", &RejectionError{Message: reply.Error}
	}
	if id := rawString(reply.Order); id != "" {
		return id, nil
	}
	return "", &RejectionError{Message: "no order id in reply"}
}

// OrderStatus fetches the reseller's view of an order. The raw JSON is
// passed through so the handler can proxy it unchanged.
func (c *Client) OrderStatus(ctx context.Context, upstreamID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("order", upstreamID)

	body, err := c.callWithRetry(ctx, c.primary, "status", params)
	if err != nil {
		return nil, err
	}

	var reply struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse upstream reply: %w", err)
	}
	if reply.Error != "" {
		return nil, &RejectionError{Message: reply.Error}
	}

	return json.RawMessage(body), nil
}

// Balance fetches the reseller account balance.
func (c *Client) Balance(ctx context.Context) (*models.UpstreamBalance, error) {
	body, err := c.callWithRetry(ctx, c.primary, "balance", nil)
	if err != nil {
		return nil, err
	}

	var balance models.UpstreamBalance
	if err := json.Unmarshal(body, &balance); err != nil {
		return nil, fmt.Errorf("failed to parse balance reply: %w", err)
	}
	return &balance, nil
}

// Services fetches the reseller's service list. Idempotent, so replies are
// cached for the configured TTL; order submissions are never cached.
func (c *Client) Services(ctx context.Context) (json.RawMessage, error) {
	cacheKey := "upstream:services:" + c.primary.Endpoint

	if cached, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
		return json.RawMessage(cached), nil
	}

	body, err := c.callWithRetry(ctx, c.primary, "services", nil)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, cacheKey, string(body), c.cacheTTL); err != nil {
		log.Printf("Failed to cache services reply: %v", err)
	}

	return json.RawMessage(body), nil
}

// Healthy reports whether the breaker currently lets calls through.
func (c *Client) Healthy() bool {
	return c.breaker.State() != circuitbreaker.StateOpen
}

func (c *Client) callWithRetry(ctx context.Context, p *Provider, action string, params url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var body []byte
		err := c.breaker.Call(func() error {
			var callErr error
			body, callErr = p.call(ctx, action, params)
			return callErr
		})
		if err == nil {
			return bytes.TrimSpace(body), nil
		}

		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !isTransient(err) {
			return nil, err
		}

		lastErr = err
		log.Printf("Upstream %s attempt %d/%d failed: %v", action, attempt, c.maxRetries, err)

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			default:
			}
			c.sleepFn(time.Duration(attempt) * c.backoff)
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func isTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te) || errors.Is(err, ErrUnavailable)
}

// rawString normalizes a JSON scalar ("23501" or 23501) to its string form.
func rawString(raw json.RawMessage) string {
	s := string(bytes.TrimSpace(raw))
	if s == "" || s == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	return s
}
