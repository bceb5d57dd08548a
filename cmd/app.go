package cmd

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"

	"github.com/lepinkainen/everybook/internal/book"
	"github.com/lepinkainen/everybook/internal/cache"
	"github.com/lepinkainen/everybook/internal/config"
	"github.com/lepinkainen/everybook/internal/contentfilter"
	"github.com/lepinkainen/everybook/internal/cover"
	"github.com/lepinkainen/everybook/internal/cycle"
	"github.com/lepinkainen/everybook/internal/datastore"
	boterrors "github.com/lepinkainen/everybook/internal/errors"
	"github.com/lepinkainen/everybook/internal/googlebooks"
	"github.com/lepinkainen/everybook/internal/memory"
	"github.com/lepinkainen/everybook/internal/publish"
	"github.com/lepinkainen/everybook/internal/search"
	"github.com/lepinkainen/everybook/internal/subject"
	"github.com/lepinkainen/everybook/internal/wordlist"
	"github.com/lepinkainen/everybook/internal/wordnik"
)

// App holds the wired collaborators of one process.
type App struct {
	Config     *config.Config
	Filter     *contentfilter.Filter
	Compositor *cover.Compositor
	Store      *datastore.SQLiteStore
	Cache      *cache.CacheDB
	Runner     *cycle.Runner
}

// newPublisher is replaced in tests.
var newPublisher = func(cfg *config.Config) (cycle.Publisher, error) {
	if cfg.Bot.DryRun {
		return &publish.DryRun{}, nil
	}
	return publish.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
}

// buildApp performs every setup step. Any failure is a *boterrors.SetupError.
func buildApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	filter, err := contentfilter.LoadBlacklist(cfg.Bot.Blacklist)
	if err != nil {
		return nil, boterrors.NewSetupError("blacklist", err)
	}
	app.Filter = filter
	slog.Debug("Loaded blacklist", "path", cfg.Bot.Blacklist, "words", filter.Len())

	app.Compositor = cover.New(cfg.Bot.ArtifactDir)
	if err := app.Compositor.EnsureDir(); err != nil {
		return nil, boterrors.NewSetupError("artifact directory", err)
	}

	recentSubjects := memory.NewWindow(cfg.Bot.MemorySize)
	recentISBNs := memory.NewWindow(cfg.Bot.MemorySize)

	if cfg.Dedup.Enabled {
		store, err := openStore(ctx, cfg.Dedup.DBFile)
		if err != nil {
			return nil, err
		}
		app.Store = store

		isbns, err := store.RecentISBNs(ctx, cfg.Bot.MemorySize)
		if err != nil {
			slog.Warn("Could not seed ISBN window from store", "error", err)
		}
		for _, isbn := range isbns {
			recentISBNs.Push(isbn)
		}
	}

	rng := newRand(cfg.Bot.Seed)

	words, err := newWordProvider(cfg, rng)
	if err != nil {
		app.Close()
		return nil, boterrors.NewSetupError("word provider", err)
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		app.Close()
		return nil, boterrors.NewSetupError("publisher", err)
	}

	nonLatin := func(string) bool { return false }
	if cfg.Policy.RejectNonLatin {
		nonLatin = contentfilter.IsNonLatinScript
	}

	validator := book.NewValidator(cfg.BookPolicy(), filter, recentISBNs, book.WithScriptCheck(nonLatin))
	bookOpts := []googlebooks.Option{
		googlebooks.WithBaseURL(cfg.GoogleBooks.BaseURL),
		googlebooks.WithRetryAttempts(cfg.GoogleBooks.RetryAttempts),
	}
	if cfg.Cache.DBFile != "" {
		app.Cache, err = cache.NewCacheDB(cfg.Cache.DBFile)
		if err != nil {
			// the cache only saves quota, run without it
			slog.Warn("Response cache unavailable", "path", cfg.Cache.DBFile, "error", err)
		} else {
			if _, err := app.Cache.ClearExpired(ctx, cache.GoogleBooksTable); err != nil {
				slog.Warn("Failed to clear expired cache entries", "error", err)
			}
			bookOpts = append(bookOpts, googlebooks.WithCache(app.Cache, cfg.Cache.TTL))
		}
	}
	catalog := googlebooks.NewClient(cfg.GoogleBooks.APIKey, bookOpts...)

	deps := cycle.Deps{
		Subjects: subject.NewSource(words, filter, recentSubjects, subject.WithScriptCheck(nonLatin)),
		Books: search.New(catalog, validator, rng, search.Config{
			PageSize:  cfg.Search.PageSize,
			MaxOffset: cfg.Search.MaxOffset,
			Language:  cfg.Search.Language,
		}),
		Compositor:     app.Compositor,
		Publisher:      publisher,
		RecentSubjects: recentSubjects,
		RecentISBNs:    recentISBNs,
	}
	// a nil *SQLiteStore must not become a non-nil interface
	if app.Store != nil {
		deps.Store = app.Store
	}

	app.Runner, err = cycle.NewRunner(cycle.Config{
		MaxAttempts:    cfg.Bot.MaxAttempts,
		StageTimeout:   cfg.Bot.StageTimeout,
		RetryBaseDelay: cfg.Bot.RetryBaseDelay,
		RetryMaxDelay:  cfg.Bot.RetryMaxDelay,
	}, deps)
	if err != nil {
		app.Close()
		return nil, boterrors.NewSetupError("cycle", err)
	}
	return app, nil
}

func openStore(ctx context.Context, path string) (*datastore.SQLiteStore, error) {
	store := datastore.NewSQLiteStore(path)
	if err := store.Connect(); err != nil {
		return nil, boterrors.NewSetupError("dedup store", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, boterrors.NewSetupError("dedup store", err)
	}
	return store, nil
}

func newWordProvider(cfg *config.Config, rng *rand.Rand) (subject.WordProvider, error) {
	switch cfg.Bot.WordSource {
	case config.WordSourceFile:
		file, err := wordlist.Load(cfg.Bot.WordFile, cfg.Wordnik.Limit, rng)
		if err != nil {
			return nil, err
		}
		slog.Debug("Using local word list", "path", cfg.Bot.WordFile, "words", file.Len())
		return file, nil
	default:
		if cfg.Wordnik.APIKey == "" {
			return nil, errors.New("wordnik.api_key (WORDNIK_API_KEY) is required")
		}
		q := wordnik.DefaultQuery()
		q.Limit = cfg.Wordnik.Limit
		q.MaxLength = cfg.Wordnik.MaxLength
		q.MinCorpusCount = cfg.Wordnik.MinCorpusCount
		q.MinDictionaryCount = cfg.Wordnik.MinDictionaryCount
		return wordnik.NewClient(cfg.Wordnik.APIKey,
			wordnik.WithBaseURL(cfg.Wordnik.BaseURL),
			wordnik.WithQuery(q),
		), nil
	}
}

// newRand returns a PCG seeded with seed, or randomly when seed is zero.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// Close releases the store and the cache.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			slog.Warn("Failed to close dedup store", "error", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			slog.Warn("Failed to close cache", "error", err)
		}
	}
}
