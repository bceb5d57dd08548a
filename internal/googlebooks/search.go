package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/everybook/internal/book"
	"github.com/lepinkainen/everybook/internal/cache"
	boterrors "github.com/lepinkainen/everybook/internal/errors"
	"github.com/lepinkainen/everybook/internal/search"
)

// volumesResponse matches the parts of the volumes API response we use.
type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Authors             []string `json:"authors"`
			PublishedDate       string   `json:"publishedDate"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Search runs a subject query, e.g.
// volumes?q=subject:garden&langRestrict=en&maxResults=40&startIndex=0.
func (c *Client) Search(ctx context.Context, q search.Query) (search.Page, error) {
	if strings.TrimSpace(q.Subject) == "" {
		return search.Page{}, fmt.Errorf("googlebooks: empty subject")
	}

	if c.cache == nil {
		return c.fetchPage(ctx, q)
	}

	page, fromCache, err := cache.GetOrFetch(ctx, c.cache, cache.GoogleBooksTable, cacheKey(q),
		func(ctx context.Context) (search.Page, error) { return c.fetchPage(ctx, q) },
		cache.SelectNegativeCacheTTL(c.cacheTTL, func(p search.Page) bool { return p.Total == 0 }),
	)
	if fromCache {
		slog.Debug("Google Books page from cache", "subject", q.Subject, "offset", q.Offset)
	}
	return page, err
}

func (c *Client) fetchPage(ctx context.Context, q search.Query) (search.Page, error) {
	endpoint := c.searchURL(q)
	return c.breaker.Execute(func() (search.Page, error) {
		var resp volumesResponse
		if err := c.getJSON(ctx, endpoint, &resp); err != nil {
			return search.Page{}, err
		}
		return toPage(resp), nil
	})
}

// cacheKey identifies a query without the API key.
func cacheKey(q search.Query) string {
	return fmt.Sprintf("%s|%s|%d|%d", strings.ToLower(q.Subject), q.Language, q.PageSize, q.Offset)
}

func (c *Client) searchURL(q search.Query) string {
	params := url.Values{}
	params.Set("q", "subject:"+q.Subject)
	if q.Language != "" {
		params.Set("langRestrict", q.Language)
	}
	if q.PageSize > 0 {
		params.Set("maxResults", strconv.Itoa(q.PageSize))
	}
	params.Set("startIndex", strconv.Itoa(q.Offset))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	return c.baseURL + "/volumes?" + params.Encode()
}

func toPage(resp volumesResponse) search.Page {
	page := search.Page{
		Total:   resp.TotalItems,
		Records: make([]book.Record, 0, len(resp.Items)),
	}
	for _, item := range resp.Items {
		vol := item.VolumeInfo
		rec := book.Record{
			Title:         vol.Title,
			Authors:       vol.Authors,
			PublishedDate: vol.PublishedDate,
			Thumbnail:     vol.ImageLinks.Thumbnail,
		}
		for _, id := range vol.IndustryIdentifiers {
			rec.Identifiers = append(rec.Identifiers, book.Identifier{Type: id.Type, Identifier: id.Identifier})
		}
		page.Records = append(page.Records, rec)
	}
	return page
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if err := c.doJSONRequest(ctx, endpoint, target); err != nil {
			lastErr = err
			if !isRetryable(err) || attempt == c.retryAttempts {
				return err
			}
			slog.Debug("Retrying Google Books request", "attempt", attempt, "error", err)
			c.sleep(retryDelay(err, attempt))
			continue
		}
		return nil
	}
	return lastErr
}

func (c *Client) doJSONRequest(ctx context.Context, endpoint string, target any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return boterrors.RateLimitFromResponse(apiName, resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &boterrors.StatusError{API: apiName, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if boterrors.IsTemporary(err) || boterrors.IsRateLimitError(err) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		// Network errors (connection resets etc.)
		if strings.Contains(urlErr.Error(), "connection") {
			return true
		}
	}
	return false
}

// retryDelay honours the server's Retry-After hint, capped at maxRetryAfter,
// and falls back to exponential backoff without one.
func retryDelay(err error, attempt int) time.Duration {
	var rlErr *boterrors.RateLimitError
	if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
		return min(rlErr.RetryAfter, maxRetryAfter)
	}
	return backoffDelay(attempt)
}

func backoffDelay(attempt int) time.Duration {
	// exponential backoff capped at 10 seconds
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 10*time.Second {
		return 10 * time.Second
	}
	return delay
}
