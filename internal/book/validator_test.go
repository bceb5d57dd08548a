package book

import (
	"testing"
	"time"

	"github.com/lepinkainen/everybook/internal/contentfilter"
	"github.com/lepinkainen/everybook/internal/memory"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func validRecord() Record {
	return Record{
		Title:         "Garden Basics",
		Authors:       []string{"Ann Green"},
		PublishedDate: "2019-04-02",
		Identifiers: []Identifier{
			{Type: "ISBN_10", Identifier: "1234567890"},
			{Type: IdentifierISBN13, Identifier: "9781234567897"},
		},
		Thumbnail: "http://books.example/cover.jpg",
	}
}

func newTestValidator(recent *memory.Window) *Validator {
	return NewValidator(
		DefaultPolicy(),
		contentfilter.New([]string{"badword"}),
		recent,
		WithClock(fixedClock),
		WithScriptCheck(contentfilter.IsNonLatinScript),
	)
}

func TestCheckAcceptsValidRecord(t *testing.T) {
	v := newTestValidator(memory.NewWindow(10))

	got, reason := v.Check(validRecord(), "gardening")
	require.Empty(t, reason)
	require.False(t, got.IsZero())
	require.Equal(t, "Garden Basics", got.Title())
	require.Equal(t, "Ann Green", got.Author())
	require.Equal(t, "9781234567897", got.ISBN())
	require.Equal(t, "http://books.example/cover.jpg", got.Thumbnail())
	require.Equal(t, "2019", got.Year())
}

func TestCheckRejections(t *testing.T) {
	recent := memory.NewWindow(10)
	recent.Push("9789999999999")

	tests := []struct {
		name   string
		mutate func(*Record)
		want   Reason
	}{
		{"no title", func(r *Record) { r.Title = "" }, ReasonMissingTitle},
		{"blank title", func(r *Record) { r.Title = "   " }, ReasonMissingTitle},
		{"short title", func(r *Record) { r.Title = "Go" }, ReasonTitleTooShort},
		{"offensive title", func(r *Record) { r.Title = "My BADWORD Diary" }, ReasonTitleOffensive},
		{"cyrillic title", func(r *Record) { r.Title = "Война и мир" }, ReasonTitleNonLatin},
		{"no authors", func(r *Record) { r.Authors = nil }, ReasonAuthorTooShort},
		{"short author", func(r *Record) { r.Authors = []string{"Al"} }, ReasonAuthorTooShort},
		{"combined too long", func(r *Record) {
			r.Title = "An Extremely Long Title About Absolutely Everything One Could Possibly Imagine"
		}, ReasonTooLong},
		{"no date", func(r *Record) { r.PublishedDate = "" }, ReasonInvalidYear},
		{"short date", func(r *Record) { r.PublishedDate = "199" }, ReasonInvalidYear},
		{"non numeric year", func(r *Record) { r.PublishedDate = "19x9-01" }, ReasonInvalidYear},
		{"future year", func(r *Record) { r.PublishedDate = "2031" }, ReasonFutureYear},
		{"no identifiers", func(r *Record) { r.Identifiers = nil }, ReasonMissingISBN},
		{"only isbn10", func(r *Record) {
			r.Identifiers = []Identifier{{Type: "ISBN_10", Identifier: "1234567890"}}
		}, ReasonMissingISBN},
		{"short isbn", func(r *Record) {
			r.Identifiers = []Identifier{{Type: IdentifierISBN13, Identifier: "978123"}}
		}, ReasonInvalidISBN},
		{"non numeric isbn", func(r *Record) {
			r.Identifiers = []Identifier{{Type: IdentifierISBN13, Identifier: "978123456789X"}}
		}, ReasonInvalidISBN},
		{"no thumbnail", func(r *Record) { r.Thumbnail = "" }, ReasonMissingThumb},
		{"trivial thumbnail", func(r *Record) { r.Thumbnail = "x" }, ReasonMissingThumb},
		{"recent isbn", func(r *Record) {
			r.Identifiers = []Identifier{{Type: IdentifierISBN13, Identifier: "9789999999999"}}
		}, ReasonRecentlyPosted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(recent)
			rec := validRecord()
			tt.mutate(&rec)

			got, reason := v.Check(rec, "gardening")
			require.Equal(t, tt.want, reason)
			require.True(t, got.IsZero())
		})
	}

	require.Equal(t, 1, recent.Len(), "rejections must not touch the history")
}

func TestCheckYearNotTracked(t *testing.T) {
	policy := DefaultPolicy()
	policy.TrackYear = false
	v := NewValidator(policy, nil, nil, WithClock(fixedClock))

	rec := validRecord()
	rec.PublishedDate = ""

	got, reason := v.Check(rec, "gardening")
	require.Empty(t, reason)
	require.Empty(t, got.Year())
}

func TestCheckStrictLengthBounds(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxTitleLength = 50
	policy.MaxAuthorLength = 34
	policy.MaxCombinedLength = 0
	v := NewValidator(policy, nil, nil, WithClock(fixedClock))

	rec := validRecord()
	rec.Title = "A Title That Is Definitely Longer Than Fifty Characters"
	_, reason := v.Check(rec, "gardening")
	require.Equal(t, ReasonTitleTooLong, reason)

	rec = validRecord()
	rec.Authors = []string{"Maximiliana Wilhelmina Bartholomew-Smith"}
	_, reason = v.Check(rec, "gardening")
	require.Equal(t, ReasonAuthorTooLong, reason)
}

func TestCheckNonLatinAllowedWhenDisabled(t *testing.T) {
	policy := DefaultPolicy()
	policy.RejectNonLatin = false
	v := NewValidator(policy, nil, nil,
		WithClock(fixedClock),
		WithScriptCheck(contentfilter.IsNonLatinScript),
	)

	rec := validRecord()
	rec.Title = "Война и мир"
	_, reason := v.Check(rec, "war")
	require.Empty(t, reason)
}

func TestFormatAuthors(t *testing.T) {
	require.Equal(t, "", FormatAuthors(nil))
	require.Equal(t, "Ann Green", FormatAuthors([]string{"Ann Green"}))
	require.Equal(t, "Ann & Bob", FormatAuthors([]string{"Ann", "Bob"}))
	require.Equal(t, "Ann et al.", FormatAuthors([]string{"Ann", "Bob", "Cid"}))
}

func TestParseYear(t *testing.T) {
	require.Equal(t, "2004", ParseYear("2004-05-01"))
	require.Equal(t, "2004", ParseYear("2004"))
	require.Equal(t, "20", ParseYear("20"))
	require.Equal(t, "", ParseYear(""))
}
