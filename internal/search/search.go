// Package search finds a postable book for a subject in the catalog.
package search

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"

	"github.com/lepinkainen/everybook/internal/book"
)

const (
	// DefaultPageSize is the number of records requested per query.
	DefaultPageSize = 40
	// DefaultMaxOffset caps the random start index of the second query.
	DefaultMaxOffset = 500
	// DefaultLanguage restricts results to English books.
	DefaultLanguage = "en"
)

// Query is one catalog request.
type Query struct {
	Subject  string
	PageSize int
	Offset   int
	Language string
}

// Page is one catalog response.
type Page struct {
	Total   int
	Records []book.Record
}

// Catalog searches book records by subject.
type Catalog interface {
	Search(ctx context.Context, q Query) (Page, error)
}

// Config controls paging of catalog queries.
type Config struct {
	PageSize  int
	MaxOffset int
	Language  string
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxOffset <= 0 {
		c.MaxOffset = DefaultMaxOffset
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	return c
}

// Searcher queries the catalog and scans results through a validator.
type Searcher struct {
	catalog   Catalog
	validator *book.Validator
	rng       *rand.Rand
	cfg       Config
}

// New creates a Searcher. rng drives the random offset and the shuffle;
// pass a seeded generator for reproducible results.
func New(catalog Catalog, validator *book.Validator, rng *rand.Rand, cfg Config) *Searcher {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Searcher{
		catalog:   catalog,
		validator: validator,
		rng:       rng,
		cfg:       cfg.withDefaults(),
	}
}

// Search queries the catalog for subject. When the catalog reports more
// results than fit on a page, the query is repeated exactly once at a
// random offset in [0, min(total-pageSize, maxOffset)) so the same first
// page is not returned every time. The records are then shuffled.
func (s *Searcher) Search(ctx context.Context, subject string) (*Results, error) {
	q := Query{
		Subject:  subject,
		PageSize: s.cfg.PageSize,
		Language: s.cfg.Language,
	}

	page, err := s.catalog.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("searching books on %q: %w", subject, err)
	}
	slog.Info("Books found", "subject", subject, "total", page.Total)

	if page.Total > s.cfg.PageSize {
		q.Offset = s.rng.IntN(min(page.Total-s.cfg.PageSize, s.cfg.MaxOffset))
		slog.Debug("Re-querying at random offset", "subject", subject, "offset", q.Offset)

		offsetPage, err := s.catalog.Search(ctx, q)
		if err != nil {
			slog.Warn("Offset query failed, using first page",
				"subject", subject, "offset", q.Offset, "error", err)
			q.Offset = 0
		} else {
			page = offsetPage
		}
	}

	records := append([]book.Record(nil), page.Records...)
	Shuffle(s.rng, records)

	return &Results{
		subject:   subject,
		total:     page.Total,
		offset:    q.Offset,
		records:   records,
		validator: s.validator,
	}, nil
}

// Shuffle permutes items in place with a Fisher-Yates shuffle.
func Shuffle[T any](rng *rand.Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Results holds the shuffled records of one search.
type Results struct {
	subject    string
	total      int
	offset     int
	records    []book.Record
	validator  *book.Validator
	rejections map[book.Reason]int
}

// Total returns the total result count reported by the catalog.
func (r *Results) Total() int { return r.total }

// Offset returns the start index of the records, 0 for the first page.
func (r *Results) Offset() int { return r.offset }

// Len returns the number of records returned by the catalog.
func (r *Results) Len() int { return len(r.records) }

// Rejections returns how often each rejection reason occurred while scanning.
func (r *Results) Rejections() map[book.Reason]int {
	out := make(map[book.Reason]int, len(r.rejections))
	for k, v := range r.rejections {
		out[k] = v
	}
	return out
}

// Accepted yields the records that pass validation, in shuffled order.
// Records are validated lazily: stopping the range stops the scan.
func (r *Results) Accepted() iter.Seq[book.Accepted] {
	return func(yield func(book.Accepted) bool) {
		for _, rec := range r.records {
			accepted, reason := r.validator.Check(rec, r.subject)
			if reason != "" {
				if r.rejections == nil {
					r.rejections = make(map[book.Reason]int)
				}
				r.rejections[reason]++
				slog.Debug("Record rejected", "subject", r.subject, "title", rec.Title, "reason", string(reason))
				continue
			}

			slog.Info("Candidate accepted",
				"subject", r.subject,
				"title", accepted.Title(),
				"author", accepted.Author(),
				"year", accepted.Year(),
				"isbn", accepted.ISBN(),
			)
			if !yield(accepted) {
				return
			}
		}
	}
}
