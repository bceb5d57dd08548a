// Package contentfilter rejects words and titles that should never be posted.
package contentfilter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Filter matches text against a blacklist of offensive substrings.
// It is safe for concurrent use once constructed.
type Filter struct {
	words []string
}

// blacklistFile is the wordfilter format: {"badwords": ["...", ...]}.
// .yaml and .yml files use the same key in YAML.
type blacklistFile struct {
	BadWords []string `json:"badwords" yaml:"badwords"`
}

// New creates a Filter from the given entries. Entries are lowercased and
// blank entries are dropped.
func New(words []string) *Filter {
	f := &Filter{words: make([]string, 0, len(words))}
	for _, w := range words {
		w = strings.TrimSpace(lower(w))
		if w == "" {
			continue
		}
		f.words = append(f.words, w)
	}
	return f
}

// LoadBlacklist reads a blacklist document from path.
// A missing file, a parse failure or an empty list is an error.
func LoadBlacklist(path string) (*Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blacklist %s: %w", path, err)
	}

	var doc blacklistFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing blacklist %s: %w", path, err)
	}

	f := New(doc.BadWords)
	if f.Len() == 0 {
		return nil, fmt.Errorf("blacklist %s has no entries", path)
	}

	slog.Info("Blacklist initialized", "path", path, "words", f.Len())
	return f, nil
}

// Len returns the number of blacklist entries.
func (f *Filter) Len() int {
	return len(f.words)
}

// IsOffensive reports whether the lowercased text contains any blacklist entry.
func (f *Filter) IsOffensive(text string) bool {
	if text == "" {
		return false
	}
	lowered := lower(text)
	for _, w := range f.words {
		if strings.Contains(lowered, w) {
			slog.Debug("Blacklisted term matched", "term", w)
			return true
		}
	}
	return false
}

// nonLatin covers Cyrillic, Japanese kana, fullwidth forms, CJK ideographs
// (unified, extension A and compatibility) and Hangul syllables.
var nonLatin = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0400, Hi: 0x04FF, Stride: 1},
		{Lo: 0x3040, Hi: 0x309F, Stride: 1},
		{Lo: 0x30A0, Hi: 0x30FF, Stride: 1},
		{Lo: 0x3400, Hi: 0x4DFF, Stride: 1},
		{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1},
		{Lo: 0xAC00, Hi: 0xD7AF, Stride: 1},
		{Lo: 0xF900, Hi: 0xFAFF, Stride: 1},
		{Lo: 0xFF00, Hi: 0xFF9F, Stride: 1},
	},
}

// IsNonLatinScript reports whether text contains a rune from one of the
// rejected scripts. Empty text is never flagged.
func IsNonLatinScript(text string) bool {
	for _, r := range text {
		if unicode.Is(nonLatin, r) {
			return true
		}
	}
	return false
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
