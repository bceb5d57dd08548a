// Package googlebooks searches the Google Books volumes API by subject.
package googlebooks

import (
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/everybook/internal/breaker"
	"github.com/lepinkainen/everybook/internal/cache"
	"github.com/lepinkainen/everybook/internal/ratelimit"
	"github.com/lepinkainen/everybook/internal/search"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultBaseURL       = "https://www.googleapis.com/books/v1"
	defaultMaxAttempts   = 3
	defaultRatePerSecond = 1
	apiName              = "googlebooks"

	// maxRetryAfter bounds how long a 429 Retry-After hint can stall a search.
	maxRetryAfter = 30 * time.Second
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a Google Books API client implementing search.Catalog.
type Client struct {
	apiKey        string
	baseURL       string
	httpClient    HTTPDoer
	rateLimiter   *ratelimit.Limiter
	breaker       *gobreaker.CircuitBreaker[search.Page]
	retryAttempts int
	sleep         func(time.Duration)
	cache         *cache.CacheDB
	cacheTTL      time.Duration
}

// Compile-time check that Client implements search.Catalog.
var _ search.Catalog = (*Client)(nil)

// NewClient creates a Google Books client. apiKey may be empty for
// anonymous, lower quota access.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		rateLimiter:   ratelimit.New("GoogleBooks", defaultRatePerSecond),
		breaker:       breaker.New[search.Page](breaker.DefaultConfig(apiName)),
		retryAttempts: defaultMaxAttempts,
		sleep:         time.Sleep,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRetryAttempts sets the number of attempts for failed requests.
func WithRetryAttempts(attempts int) Option {
	return func(client *Client) {
		if attempts > 0 {
			client.retryAttempts = attempts
		}
	}
}

// WithRateLimiter sets a custom rate limiter for the client.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		if limiter != nil {
			client.rateLimiter = limiter
		}
	}
}

// WithBreaker sets the circuit breaker settings.
func WithBreaker(cfg breaker.Config) Option {
	return func(client *Client) {
		client.breaker = breaker.New[search.Page](cfg)
	}
}

// WithCache stores search pages in c for ttl. Empty results are kept for
// cache.NegativeCacheTTL.
func WithCache(c *cache.CacheDB, ttl time.Duration) Option {
	return func(client *Client) {
		client.cache = c
		client.cacheTTL = ttl
		if ttl <= 0 {
			client.cacheTTL = cache.DefaultCacheTTL
		}
	}
}
