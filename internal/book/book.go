// Package book turns raw catalog records into books that are safe to post.
package book

import "strings"

// IdentifierISBN13 is the industry identifier type carrying an ISBN-13.
const IdentifierISBN13 = "ISBN_13"

// Identifier is one industry identifier of a record, e.g. ISBN_10 or ISBN_13.
type Identifier struct {
	Type       string
	Identifier string
}

// Record is a book as described by the catalog. Every field may be missing.
type Record struct {
	Title         string
	Authors       []string
	PublishedDate string
	Identifiers   []Identifier
	Thumbnail     string
}

// ISBN13 returns the first ISBN_13 identifier of the record, or "".
func (r Record) ISBN13() string {
	for _, id := range r.Identifiers {
		if id.Type == IdentifierISBN13 {
			return strings.TrimSpace(id.Identifier)
		}
	}
	return ""
}

// Accepted is a book that passed every validation rule.
// It can only be built by a Validator and never changes afterwards.
type Accepted struct {
	title     string
	author    string
	isbn      string
	thumbnail string
	year      string
}

// Title returns the book title.
func (a Accepted) Title() string { return a.title }

// Author returns the formatted author line.
func (a Accepted) Author() string { return a.author }

// ISBN returns the 13 digit ISBN.
func (a Accepted) ISBN() string { return a.isbn }

// Thumbnail returns the cover thumbnail URL.
func (a Accepted) Thumbnail() string { return a.thumbnail }

// Year returns the publication year, or "" when years are not tracked.
func (a Accepted) Year() string { return a.year }

// IsZero reports whether a is the zero value rather than a validated book.
func (a Accepted) IsZero() bool { return a.isbn == "" }

// FormatAuthors renders an author list the way it appears in a post:
// "", "A", "A & B" or "A et al.".
func FormatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return strings.TrimSpace(authors[0])
	case 2:
		return strings.TrimSpace(authors[0]) + " & " + strings.TrimSpace(authors[1])
	default:
		return strings.TrimSpace(authors[0]) + " et al."
	}
}

// ParseYear returns the leading four characters of a publication date
// such as "2004", "2004-05" or "2004-05-01". Shorter dates are returned as is.
func ParseYear(publishedDate string) string {
	if len(publishedDate) < 4 {
		return publishedDate
	}
	return publishedDate[:4]
}
