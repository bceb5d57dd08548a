package datastore

import (
	"context"
	"time"
)

// Post is one published book as stored in the dedup table.
type Post struct {
	ISBN     string
	Subject  string
	Title    string
	Author   string
	PostedAt time.Time
}

// Store defines the interface for the posted-books dedup table
type Store interface {
	// EnsureSchema creates the table if it doesn't exist
	EnsureSchema(ctx context.Context) error

	// Exists reports whether the ISBN has been posted before
	Exists(ctx context.Context, isbn string) (bool, error)

	// Record stores a published book
	Record(ctx context.Context, post Post) error

	// RecentISBNs returns up to n ISBNs, oldest first
	RecentISBNs(ctx context.Context, n int) ([]string, error)

	// History returns up to n posts, newest first
	History(ctx context.Context, n int) ([]Post, error)

	// Close closes the connection to the data store
	Close() error
}
