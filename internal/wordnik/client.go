// Package wordnik fetches random nouns from the Wordnik API.
package wordnik

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/everybook/internal/breaker"
	boterrors "github.com/lepinkainen/everybook/internal/errors"
	"github.com/lepinkainen/everybook/internal/ratelimit"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultBaseURL = "https://api.wordnik.com/v4"
	apiName        = "wordnik"
)

// Query holds the constraints sent to the randomWords endpoint.
type Query struct {
	MinCorpusCount      int
	MinDictionaryCount  int
	HasDictionaryDef    bool
	IncludePartOfSpeech []string
	ExcludePartOfSpeech []string
	Limit               int
	MaxLength           int
}

// DefaultQuery asks for ten common, dictionary-defined nouns of at most
// twelve letters.
func DefaultQuery() Query {
	return Query{
		MinCorpusCount:      3000,
		MinDictionaryCount:  15,
		HasDictionaryDef:    true,
		IncludePartOfSpeech: []string{"noun", "proper-noun"},
		ExcludePartOfSpeech: []string{"proper-noun-posessive", "suffix", "family-name", "idiom", "affix"},
		Limit:               10,
		MaxLength:           12,
	}
}

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client fetches random word batches.
type Client struct {
	apiKey      string
	baseURL     string
	query       Query
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
	breaker     *gobreaker.CircuitBreaker[[]string]
}

// NewClient creates a Wordnik client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		query:       DefaultQuery(),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rateLimiter: ratelimit.NewEvery("Wordnik", 2*time.Second, 5),
		breaker:     breaker.New[[]string](breaker.DefaultConfig(apiName)),
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

// WithQuery replaces the default word constraints.
func WithQuery(q Query) Option {
	return func(client *Client) {
		client.query = q
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

// randomWord is one element of the randomWords response.
type randomWord struct {
	ID   int    `json:"id"`
	Word string `json:"word"`
}

// FetchWords requests one batch of random words. A single request is
// made; retrying is up to the caller.
func (c *Client) FetchWords(ctx context.Context) ([]string, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("wordnik: API key is not configured")
	}
	return c.breaker.Execute(func() ([]string, error) {
		return c.fetch(ctx)
	})
}

func (c *Client) fetch(ctx context.Context) ([]string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.randomWordsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wordnik request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, boterrors.RateLimitFromResponse(apiName, resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &boterrors.StatusError{API: apiName, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var words []randomWord
	if err := json.NewDecoder(resp.Body).Decode(&words); err != nil {
		return nil, fmt.Errorf("decoding wordnik response: %w", err)
	}

	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, w.Word)
	}
	return out, nil
}

func (c *Client) randomWordsURL() string {
	q := c.query
	params := url.Values{}
	if q.MinCorpusCount > 0 {
		params.Set("minCorpusCount", strconv.Itoa(q.MinCorpusCount))
	}
	if q.MinDictionaryCount > 0 {
		params.Set("minDictionaryCount", strconv.Itoa(q.MinDictionaryCount))
	}
	params.Set("hasDictionaryDef", strconv.FormatBool(q.HasDictionaryDef))
	if len(q.ExcludePartOfSpeech) > 0 {
		params.Set("excludePartOfSpeech", strings.Join(q.ExcludePartOfSpeech, ","))
	}
	if len(q.IncludePartOfSpeech) > 0 {
		params.Set("includePartOfSpeech", strings.Join(q.IncludePartOfSpeech, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.MaxLength > 0 {
		params.Set("maxLength", strconv.Itoa(q.MaxLength))
	}
	params.Set("api_key", c.apiKey)
	return c.baseURL + "/words.json/randomWords?" + params.Encode()
}
