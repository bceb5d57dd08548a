package book

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Reason explains why a record was rejected. The empty Reason means accepted.
type Reason string

// Rejection reasons, in the order the rules are applied.
const (
	ReasonMissingTitle   Reason = "missing title"
	ReasonTitleTooShort  Reason = "title too short"
	ReasonTitleTooLong   Reason = "title too long"
	ReasonTitleOffensive Reason = "title offensive"
	ReasonTitleNonLatin  Reason = "title not in latin script"
	ReasonAuthorTooShort Reason = "author too short"
	ReasonAuthorTooLong  Reason = "author too long"
	ReasonTooLong        Reason = "subject, title and author too long"
	ReasonInvalidYear    Reason = "invalid publication year"
	ReasonFutureYear     Reason = "publication year in the future"
	ReasonMissingISBN    Reason = "missing ISBN-13"
	ReasonInvalidISBN    Reason = "invalid ISBN-13"
	ReasonMissingThumb   Reason = "missing thumbnail"
	ReasonRecentlyPosted Reason = "ISBN posted recently"
)

const (
	isbn13Length       = 13
	minThumbnailLength = 3
)

// Policy holds the tunable bounds of the validation rules.
// A zero maximum disables that bound.
type Policy struct {
	MinTitleLength    int
	MaxTitleLength    int
	MinAuthorLength   int
	MaxAuthorLength   int
	MaxCombinedLength int
	RejectNonLatin    bool
	TrackYear         bool
}

// DefaultPolicy returns the rule set the bot runs with unless configured
// otherwise: one combined length bound of 90 characters for subject, title
// and author, no separate title or author maximum.
func DefaultPolicy() Policy {
	return Policy{
		MinTitleLength:    3,
		MinAuthorLength:   3,
		MaxCombinedLength: 90,
		RejectNonLatin:    true,
		TrackYear:         true,
	}
}

// Screener flags offensive text.
type Screener interface {
	IsOffensive(text string) bool
}

// History reports whether a value was used recently.
type History interface {
	Contains(value string) bool
}

// Validator applies the policy to raw records.
type Validator struct {
	policy   Policy
	screener Screener
	recent   History
	nonLatin func(string) bool
	now      func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for the publication year check.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithScriptCheck sets the function detecting non-Latin titles.
func WithScriptCheck(fn func(string) bool) Option {
	return func(v *Validator) {
		if fn != nil {
			v.nonLatin = fn
		}
	}
}

// NewValidator creates a Validator. recent holds recently posted ISBNs.
func NewValidator(policy Policy, screener Screener, recent History, opts ...Option) *Validator {
	v := &Validator{
		policy:   policy,
		screener: screener,
		recent:   recent,
		nonLatin: func(string) bool { return false },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy returns the policy the validator applies.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Check validates rec for subject. Rules short-circuit on the first
// failure; a rejection has no side effects.
func (v *Validator) Check(rec Record, subject string) (Accepted, Reason) {
	p := v.policy

	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return Accepted{}, ReasonMissingTitle
	}
	titleLen := utf8.RuneCountInString(title)
	if titleLen < p.MinTitleLength {
		return Accepted{}, ReasonTitleTooShort
	}
	if p.MaxTitleLength > 0 && titleLen > p.MaxTitleLength {
		return Accepted{}, ReasonTitleTooLong
	}
	if v.screener != nil && v.screener.IsOffensive(title) {
		return Accepted{}, ReasonTitleOffensive
	}
	if p.RejectNonLatin && v.nonLatin(title) {
		return Accepted{}, ReasonTitleNonLatin
	}

	author := FormatAuthors(rec.Authors)
	authorLen := utf8.RuneCountInString(author)
	if authorLen < p.MinAuthorLength {
		return Accepted{}, ReasonAuthorTooShort
	}
	if p.MaxAuthorLength > 0 && authorLen > p.MaxAuthorLength {
		return Accepted{}, ReasonAuthorTooLong
	}
	if p.MaxCombinedLength > 0 &&
		utf8.RuneCountInString(subject)+titleLen+authorLen > p.MaxCombinedLength {
		return Accepted{}, ReasonTooLong
	}

	var year string
	if p.TrackYear {
		year = ParseYear(strings.TrimSpace(rec.PublishedDate))
		if len(year) != 4 || !isDigits(year) {
			return Accepted{}, ReasonInvalidYear
		}
		// isDigits guarantees Atoi succeeds
		if y, _ := strconv.Atoi(year); y > v.now().Year() {
			return Accepted{}, ReasonFutureYear
		}
	}

	isbn := rec.ISBN13()
	if isbn == "" {
		return Accepted{}, ReasonMissingISBN
	}
	if len(isbn) != isbn13Length || !isDigits(isbn) {
		return Accepted{}, ReasonInvalidISBN
	}

	thumbnail := strings.TrimSpace(rec.Thumbnail)
	if len(thumbnail) < minThumbnailLength {
		return Accepted{}, ReasonMissingThumb
	}

	if v.recent != nil && v.recent.Contains(isbn) {
		return Accepted{}, ReasonRecentlyPosted
	}

	return Accepted{
		title:     title,
		author:    author,
		isbn:      isbn,
		thumbnail: thumbnail,
		year:      year,
	}, ""
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
