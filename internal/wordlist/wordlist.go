// Package wordlist serves subject words from a local file, for running
// the bot without a Wordnik key.
package wordlist

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

// File hands out random batches from a newline separated word list.
// Blank lines and lines starting with '#' are ignored.
type File struct {
	words []string
	batch int
	rng   *rand.Rand
}

// Load reads the word list at path. batch is the number of words per fetch.
func Load(path string, batch int, rng *rand.Rand) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening word list: %w", err)
	}
	defer func() { _ = f.Close() }()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading word list: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list %s is empty", path)
	}

	if batch <= 0 {
		batch = 10
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &File{words: words, batch: batch, rng: rng}, nil
}

// Len returns the number of words in the list.
func (f *File) Len() int {
	return len(f.words)
}

// FetchWords returns up to batch distinct random words.
func (f *File) FetchWords(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := min(f.batch, len(f.words))
	out := make([]string, 0, n)
	for _, i := range f.rng.Perm(len(f.words))[:n] {
		out = append(out, f.words[i])
	}
	return out, nil
}
