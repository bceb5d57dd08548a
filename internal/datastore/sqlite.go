package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS posted_books (
	isbn      TEXT PRIMARY KEY,
	subject   TEXT NOT NULL DEFAULT '',
	title     TEXT NOT NULL DEFAULT '',
	author    TEXT NOT NULL DEFAULT '',
	posted_at TIMESTAMP NOT NULL
)`

// ErrNotConnected is returned when the store is used before Connect.
var ErrNotConnected = errors.New("datastore is not connected")

// SQLiteStore implements the Store interface for local SQLite storage
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		dbPath: dbPath,
		now:    time.Now,
	}
}

// Connect opens a connection to the SQLite database
func (s *SQLiteStore) Connect() error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer keeps in-memory databases on one connection
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

// EnsureSchema creates the posted_books table if it doesn't exist
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConnected
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Exists reports whether isbn is already in the table
func (s *SQLiteStore) Exists(ctx context.Context, isbn string) (bool, error) {
	if s.db == nil {
		return false, ErrNotConnected
	}
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM posted_books WHERE isbn = ?", isbn).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query isbn %s: %w", isbn, err)
	}
	return true, nil
}

// Record inserts a post. Recording an ISBN twice keeps the first row.
func (s *SQLiteStore) Record(ctx context.Context, post Post) error {
	if s.db == nil {
		return ErrNotConnected
	}
	if post.ISBN == "" {
		return errors.New("cannot record a post without an ISBN")
	}
	postedAt := post.PostedAt
	if postedAt.IsZero() {
		postedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO posted_books (isbn, subject, title, author, posted_at) VALUES (?, ?, ?, ?, ?)`,
		post.ISBN, post.Subject, post.Title, post.Author, postedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// RecentISBNs returns the n most recently posted ISBNs, oldest first, so
// they can be pushed into a FIFO window in order.
func (s *SQLiteStore) RecentISBNs(ctx context.Context, n int) ([]string, error) {
	posts, err := s.History(ctx, n)
	if err != nil {
		return nil, err
	}
	isbns := make([]string, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		isbns = append(isbns, posts[i].ISBN)
	}
	return isbns, nil
}

// History returns up to n posts, newest first
func (s *SQLiteStore) History(ctx context.Context, n int) ([]Post, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT isbn, subject, title, author, posted_at FROM posted_books ORDER BY posted_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ISBN, &p.Subject, &p.Title, &p.Author, &p.PostedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
