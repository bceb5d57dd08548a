package googlebooks

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lepinkainen/everybook/internal/book"
	"github.com/lepinkainen/everybook/internal/breaker"
	"github.com/lepinkainen/everybook/internal/cache"
	boterrors "github.com/lepinkainen/everybook/internal/errors"
	"github.com/lepinkainen/everybook/internal/ratelimit"
	"github.com/lepinkainen/everybook/internal/search"
	"github.com/lepinkainen/everybook/internal/testutil"
	"github.com/stretchr/testify/require"
)

const volumesJSON = `{
	"totalItems": 120,
	"items": [{
		"volumeInfo": {
			"title": "Garden Basics",
			"authors": ["Ann Green"],
			"publishedDate": "2019-04-02",
			"industryIdentifiers": [
				{"type": "ISBN_10", "identifier": "1234567890"},
				{"type": "ISBN_13", "identifier": "9781234567897"}
			],
			"imageLinks": {"thumbnail": "http://books.google.com/books/content?id=x&zoom=1"}
		}
	}, {
		"volumeInfo": {"title": "No Metadata"}
	}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := testutil.NewIPv4TestServer(t, handler)
	opts = append([]Option{
		WithBaseURL(server.URL + "/"),
		WithHTTPClient(server.Client()),
		WithRateLimiter(ratelimit.New("test", 1000)),
	}, opts...)
	client := NewClient("secret", opts...)
	client.sleep = func(time.Duration) {}
	return client
}

func TestSearchBuildsSubjectQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/volumes", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "subject:gardening", q.Get("q"))
		require.Equal(t, "en", q.Get("langRestrict"))
		require.Equal(t, "40", q.Get("maxResults"))
		require.Equal(t, "17", q.Get("startIndex"))
		require.Equal(t, "secret", q.Get("key"))
		_, _ = w.Write([]byte(volumesJSON))
	})

	page, err := client.Search(context.Background(), search.Query{
		Subject:  "gardening",
		PageSize: 40,
		Offset:   17,
		Language: "en",
	})
	require.NoError(t, err)
	require.Equal(t, 120, page.Total)
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	require.Equal(t, "Garden Basics", first.Title)
	require.Equal(t, []string{"Ann Green"}, first.Authors)
	require.Equal(t, "2019-04-02", first.PublishedDate)
	require.Equal(t, "9781234567897", first.ISBN13())
	require.Contains(t, first.Thumbnail, "books.google.com")

	require.Equal(t, book.Record{Title: "No Metadata"}, page.Records[1])
}

func TestSearchEmptySubject(t *testing.T) {
	client := NewClient("")
	_, err := client.Search(context.Background(), search.Query{Subject: " "})
	require.Error(t, err)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	})

	page, err := client.Search(context.Background(), search.Query{Subject: "ships"})
	require.NoError(t, err)
	require.Zero(t, page.Total)
	require.Equal(t, int32(3), calls.Load())
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid query"))
	})

	_, err := client.Search(context.Background(), search.Query{Subject: "ships"})
	require.ErrorContains(t, err, "unexpected status 400: invalid query")
	require.Equal(t, int32(1), calls.Load())
}

func TestSearchRateLimited(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	var slept []time.Duration
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := client.Search(context.Background(), search.Query{Subject: "ships"})
	require.True(t, boterrors.IsRateLimitError(err))
	require.Equal(t, int32(defaultMaxAttempts), calls.Load())
	require.Equal(t, []time.Duration{maxRetryAfter, maxRetryAfter}, slept, "Retry-After is capped")
}

func TestSearchHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	})
	var slept []time.Duration
	client.sleep = func(d time.Duration) { slept = append(slept, d) }

	page, err := client.Search(context.Background(), search.Query{Subject: "ships"})
	require.NoError(t, err)
	require.Equal(t, 0, page.Total)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestSearchBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, WithRetryAttempts(1), WithBreaker(breaker.Config{Name: "test", FailureThreshold: 2, OpenTimeout: time.Hour}))

	for range 2 {
		_, err := client.Search(context.Background(), search.Query{Subject: "ships"})
		require.Error(t, err)
	}
	_, err := client.Search(context.Background(), search.Query{Subject: "ships"})
	require.True(t, breaker.IsOpen(err))
	require.Equal(t, int32(2), calls.Load())
}

func TestBackoffDelay(t *testing.T) {
	require.Equal(t, time.Second, backoffDelay(1))
	require.Equal(t, 4*time.Second, backoffDelay(3))
	require.Equal(t, 10*time.Second, backoffDelay(8))
}

func TestSearchUsesCache(t *testing.T) {
	env := testutil.NewTestEnv(t)
	db, err := cache.NewCacheDB(env.Path("cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(volumesJSON))
	}, WithCache(db, time.Hour))

	q := search.Query{Subject: "gardening", PageSize: 40, Language: "en"}
	first, err := client.Search(context.Background(), q)
	require.NoError(t, err)
	second, err := client.Search(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, first, second)
	require.Equal(t, "9781234567897", second.Records[0].ISBN13())

	q.Offset = 40
	_, err = client.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}
