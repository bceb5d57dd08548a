// Package cycle runs one posting cycle: pick a subject, find an acceptable
// book about it, build the cover image and publish.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lepinkainen/everybook/internal/book"
	"github.com/lepinkainen/everybook/internal/datastore"
	"github.com/lepinkainen/everybook/internal/memory"
	"github.com/lepinkainen/everybook/internal/metrics"
	"github.com/lepinkainen/everybook/internal/search"
)

const (
	DefaultMaxAttempts    = 35
	DefaultStageTimeout   = 30 * time.Second
	DefaultRetryBaseDelay = time.Second
	DefaultRetryMaxDelay  = 30 * time.Second
)

// ErrCycleRunning is returned when RunOnce is called while a cycle is in
// progress on the same Runner.
var ErrCycleRunning = errors.New("a cycle is already running")

// SubjectSource hands out subjects. subject.Source implements it.
type SubjectSource interface {
	Next(ctx context.Context) (string, error)
}

// BookSearcher finds candidate books. search.Searcher implements it.
type BookSearcher interface {
	Search(ctx context.Context, subject string) (*search.Results, error)
}

// ImageCompositor builds the image attached to a post.
type ImageCompositor interface {
	BuildCoverArt(ctx context.Context, imageURL string) (string, error)
	Cleanup() error
}

// Publisher posts the message and image.
type Publisher interface {
	Publish(ctx context.Context, message, imagePath string) error
}

// DedupStore is the durable record of posted ISBNs.
type DedupStore interface {
	Exists(ctx context.Context, isbn string) (bool, error)
	Record(ctx context.Context, post datastore.Post) error
}

// Config bounds a cycle.
type Config struct {
	MaxAttempts    int
	StageTimeout   time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = max(DefaultRetryMaxDelay, c.RetryBaseDelay)
	}
	return c
}

// Deps are the collaborators of a Runner. Store is optional.
type Deps struct {
	Subjects   SubjectSource
	Books      BookSearcher
	Compositor ImageCompositor
	Publisher  Publisher
	Store      DedupStore

	// RecentSubjects and RecentISBNs are the windows the subject source and
	// the validator consult. The runner trims them and pushes to them after
	// a successful post.
	RecentSubjects *memory.Window
	RecentISBNs    *memory.Window
}

// Result describes a finished cycle.
type Result struct {
	ID        string
	State     State
	Attempts  int
	Subject   string
	Book      book.Accepted
	Message   string
	ImagePath string
}

// Runner owns the state of consecutive posting cycles.
type Runner struct {
	cfg  Config
	deps Deps

	mu    sync.Mutex
	state State

	onTransition func(from, to State)
	wait         func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithTransition registers fn to observe every state change.
func WithTransition(fn func(from, to State)) Option {
	return func(r *Runner) {
		r.onTransition = fn
	}
}

// WithWait replaces the backoff sleep.
func WithWait(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		if fn != nil {
			r.wait = fn
		}
	}
}

// WithClock sets the time source used for post timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a Runner. Subjects, Books, Compositor and Publisher
// are required.
func NewRunner(cfg Config, deps Deps, opts ...Option) (*Runner, error) {
	switch {
	case deps.Subjects == nil:
		return nil, errors.New("cycle: subject source is required")
	case deps.Books == nil:
		return nil, errors.New("cycle: book searcher is required")
	case deps.Compositor == nil:
		return nil, errors.New("cycle: image compositor is required")
	case deps.Publisher == nil:
		return nil, errors.New("cycle: publisher is required")
	}
	if deps.RecentSubjects == nil {
		deps.RecentSubjects = memory.NewWindow(memory.DefaultSize)
	}
	if deps.RecentISBNs == nil {
		deps.RecentISBNs = memory.NewWindow(memory.DefaultSize)
	}

	r := &Runner{
		cfg:   cfg.withDefaults(),
		deps:  deps,
		state: StateInit,
		wait:  sleepContext,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State returns the state of the last cycle. It is not synchronized with
// a concurrently running RunOnce.
func (r *Runner) State() State {
	return r.state
}

// RunOnce runs one full cycle. Running out of attempts ends the cycle in
// StateAbandoned with a nil error; a failure to build the image or publish
// ends it in StateFailed and returns the error.
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	if !r.mu.TryLock() {
		return Result{}, ErrCycleRunning
	}
	defer r.mu.Unlock()

	started := time.Now()
	res := Result{ID: uuid.NewString()}
	log := slog.With("cycle", res.ID)

	r.transition(log, StateInit)
	r.reset(log)

	err := r.run(ctx, log, &res)
	res.State = r.state

	metrics.ObserveCycle(res.State.String(), res.Attempts, time.Since(started))
	return res, err
}

func (r *Runner) reset(log *slog.Logger) {
	if n := r.deps.RecentSubjects.Trim(); n > 0 {
		log.Debug("Trimmed subject window", "evicted", n)
	}
	if n := r.deps.RecentISBNs.Trim(); n > 0 {
		log.Debug("Trimmed ISBN window", "evicted", n)
	}
	if err := r.deps.Compositor.Cleanup(); err != nil {
		log.Warn("Failed to clean up previous images", "error", err)
	}
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, res *Result) error {
	subject, pick, err := r.selectBook(ctx, log, res)
	if err != nil {
		r.transition(log, StateFailed)
		return err
	}
	if pick.IsZero() {
		r.transition(log, StateAbandoned)
		log.Warn("No book found, giving up until next cycle", "attempts", res.Attempts)
		return nil
	}

	res.Subject = subject
	res.Book = pick
	res.Message = FormatMessage(subject, pick)
	log = log.With("subject", subject, "isbn", pick.ISBN(), "title", pick.Title())

	r.transition(log, StateAssemblingArtifact)
	path, err := withTimeout(ctx, r.cfg.StageTimeout, func(ctx context.Context) (string, error) {
		return r.deps.Compositor.BuildCoverArt(ctx, pick.Thumbnail())
	})
	if err != nil {
		r.transition(log, StateFailed)
		log.Error("Failed to build cover image", "stage", StateAssemblingArtifact.String(), "error", err)
		return fmt.Errorf("building cover image: %w", err)
	}
	res.ImagePath = path

	r.transition(log, StatePublishing)
	_, err = withTimeout(ctx, r.cfg.StageTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.deps.Publisher.Publish(ctx, res.Message, path)
	})
	metrics.ObservePublish(err, r.now())
	if err != nil {
		r.transition(log, StateFailed)
		log.Error("Failed to publish", "stage", StatePublishing.String(), "error", err)
		return fmt.Errorf("publishing: %w", err)
	}

	r.remember(ctx, log, subject, pick)
	r.transition(log, StateDone)
	log.Info("Posted", "message", res.Message, "attempts", res.Attempts)
	return nil
}

// selectBook spends attempts until a candidate survives every check. A zero
// book with a nil error means the budget ran out.
func (r *Runner) selectBook(ctx context.Context, log *slog.Logger, res *Result) (string, book.Accepted, error) {
	failures := 0
	for res.Attempts < r.cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return "", book.Accepted{}, err
		}
		res.Attempts++
		alog := log.With("attempt", res.Attempts)

		r.transition(alog, StateSelectingSubject)
		subject, err := withTimeout(ctx, r.cfg.StageTimeout, r.deps.Subjects.Next)
		if err != nil {
			metrics.ObserveSubjectError(StateSelectingSubject.String())
			alog.Warn("Failed to pick a subject", "stage", StateSelectingSubject.String(), "error", err)
			failures++
			if res.Attempts >= r.cfg.MaxAttempts {
				break
			}
			if err := r.wait(ctx, r.backoff(failures)); err != nil {
				return "", book.Accepted{}, err
			}
			continue
		}
		failures = 0
		alog = alog.With("subject", subject)

		r.transition(alog, StateSearchingBooks)
		results, err := withTimeout(ctx, r.cfg.StageTimeout, func(ctx context.Context) (*search.Results, error) {
			return r.deps.Books.Search(ctx, subject)
		})
		if err != nil {
			metrics.ObserveSubjectError(StateSearchingBooks.String())
			alog.Warn("Book search failed", "stage", StateSearchingBooks.String(), "error", err)
			continue
		}

		pick, ok := r.firstUnposted(ctx, alog, results)
		for reason, n := range results.Rejections() {
			metrics.ObserveRejection(string(reason), n)
		}
		if ok {
			return subject, pick, nil
		}
		alog.Info("No acceptable book for subject", "total", results.Total(), "returned", results.Len())
	}
	return "", book.Accepted{}, nil
}

func (r *Runner) firstUnposted(ctx context.Context, log *slog.Logger, results *search.Results) (book.Accepted, bool) {
	for candidate := range results.Accepted() {
		if r.deps.Store == nil {
			return candidate, true
		}

		r.transition(log, StateCheckingDedup)
		exists, err := withTimeout(ctx, r.cfg.StageTimeout, func(ctx context.Context) (bool, error) {
			return r.deps.Store.Exists(ctx, candidate.ISBN())
		})
		switch {
		case err != nil:
			log.Warn("Dedup lookup failed, skipping candidate", "stage", StateCheckingDedup.String(), "isbn", candidate.ISBN(), "error", err)
		case exists:
			log.Info("Book posted before, skipping", "isbn", candidate.ISBN(), "title", candidate.Title())
			r.deps.RecentISBNs.Push(candidate.ISBN())
		default:
			return candidate, true
		}
	}
	return book.Accepted{}, false
}

func (r *Runner) remember(ctx context.Context, log *slog.Logger, subject string, pick book.Accepted) {
	r.deps.RecentISBNs.Push(pick.ISBN())
	r.deps.RecentSubjects.Push(subject)

	if r.deps.Store == nil {
		return
	}
	post := datastore.Post{
		ISBN:     pick.ISBN(),
		Subject:  subject,
		Title:    pick.Title(),
		Author:   pick.Author(),
		PostedAt: r.now(),
	}
	_, err := withTimeout(ctx, r.cfg.StageTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.deps.Store.Record(ctx, post)
	})
	if err != nil {
		log.Error("Failed to record posted book", "stage", StatePublishing.String(), "error", err)
	}
}

func (r *Runner) transition(log *slog.Logger, to State) {
	from := r.state
	r.state = to
	log.Debug("Cycle state", "from", from.String(), "to", to.String())
	if r.onTransition != nil {
		r.onTransition(from, to)
	}
}

// backoff doubles the base delay per consecutive failure up to the cap.
func (r *Runner) backoff(failures int) time.Duration {
	delay := r.cfg.RetryBaseDelay
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= r.cfg.RetryMaxDelay {
			return r.cfg.RetryMaxDelay
		}
	}
	return delay
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
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
