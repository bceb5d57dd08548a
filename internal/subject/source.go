// Package subject picks the topic word for the next post.
package subject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrNoWords is returned when the word provider answered with no words.
	ErrNoWords = errors.New("word provider returned no words")
	// ErrBatchRejected is returned when every word of a fresh batch was rejected.
	ErrBatchRejected = errors.New("all fetched words were rejected")
)

// State is the fill state of the word cache.
type State int

const (
	// StateEmpty means no cached words are left.
	StateEmpty State = iota
	// StateFetching means a word batch is being requested.
	StateFetching
	// StateReady means at least one cached word is available.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// WordProvider supplies batches of candidate subject words.
type WordProvider interface {
	FetchWords(ctx context.Context) ([]string, error)
}

// Screener flags offensive words.
type Screener interface {
	IsOffensive(text string) bool
}

// History reports whether a subject was used recently.
type History interface {
	Contains(value string) bool
}

// Source hands out subjects from a cached word batch, fetching a new batch
// only when the cache is drained.
type Source struct {
	provider WordProvider
	screener Screener
	recent   History
	nonLatin func(string) bool
	cache    []string
	state    State
}

// Option configures a Source.
type Option func(*Source)

// WithScriptCheck rejects subjects for which fn returns true.
func WithScriptCheck(fn func(string) bool) Option {
	return func(s *Source) {
		s.nonLatin = fn
	}
}

// NewSource creates an empty Source.
func NewSource(provider WordProvider, screener Screener, recent History, opts ...Option) *Source {
	s := &Source{
		provider: provider,
		screener: screener,
		recent:   recent,
		state:    StateEmpty,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current cache state.
func (s *Source) State() State {
	return s.state
}

// Cached returns a copy of the words waiting in the cache.
func (s *Source) Cached() []string {
	return append([]string(nil), s.cache...)
}

// Next returns the next acceptable subject. Rejected words are discarded
// without fetching as long as cached words remain. At most one batch is
// fetched per call; when that fails, is empty or is fully rejected, Next
// returns an error and leaves retrying to the caller.
func (s *Source) Next(ctx context.Context) (string, error) {
	fetched := false
	for {
		if len(s.cache) == 0 {
			if fetched {
				s.state = StateEmpty
				return "", ErrBatchRejected
			}
			if err := s.fetch(ctx); err != nil {
				return "", err
			}
			fetched = true
		}

		word := s.cache[0]
		s.cache = s.cache[1:]
		s.updateState()

		if reason := s.reject(word); reason != "" {
			slog.Info("Subject rejected, picking another", "subject", word, "reason", reason)
			continue
		}
		return word, nil
	}
}

func (s *Source) fetch(ctx context.Context) error {
	s.state = StateFetching
	words, err := s.provider.FetchWords(ctx)
	if err != nil {
		s.state = StateEmpty
		return fmt.Errorf("fetching words: %w", err)
	}

	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			s.cache = append(s.cache, w)
		}
	}
	s.updateState()
	if s.state == StateEmpty {
		return ErrNoWords
	}
	slog.Debug("Fetched subject words", "count", len(s.cache))
	return nil
}

func (s *Source) reject(word string) string {
	switch {
	case s.recent != nil && s.recent.Contains(word):
		return "used recently"
	case s.screener != nil && s.screener.IsOffensive(word):
		return "offensive"
	case s.nonLatin != nil && s.nonLatin(word):
		return "not in latin script"
	default:
		return ""
	}
}

func (s *Source) updateState() {
	if len(s.cache) == 0 {
		s.state = StateEmpty
		return
	}
	s.state = StateReady
}
