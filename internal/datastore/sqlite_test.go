package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(":memory:")
	require.NoError(t, store.Connect())
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestSQLiteStore_RecordAndExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	exists, err := store.Exists(ctx, "9780000000001")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Record(ctx, Post{ISBN: "9780000000001", Subject: "cats", Title: "Cats", Author: "Jane Doe"}))

	exists, err = store.Exists(ctx, "9780000000001")
	require.NoError(t, err)
	require.True(t, exists)

	// second insert is ignored rather than failing
	require.NoError(t, store.Record(ctx, Post{ISBN: "9780000000001", Title: "Other"}))
	history, err := store.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "Cats", history[0].Title)
}

func TestSQLiteStore_EnsureSchemaIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestSQLiteStore_RecordRequiresISBN(t *testing.T) {
	store := newTestStore(t)
	require.Error(t, store.Record(context.Background(), Post{Title: "No ISBN"}))
}

func TestSQLiteStore_HistoryOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, isbn := range []string{"1111111111111", "2222222222222", "3333333333333"} {
		require.NoError(t, store.Record(ctx, Post{ISBN: isbn, PostedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	history, err := store.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "3333333333333", history[0].ISBN)
	require.Equal(t, "2222222222222", history[1].ISBN)

	recent, err := store.RecentISBNs(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"2222222222222", "3333333333333"}, recent)

	none, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSQLiteStore_NotConnected(t *testing.T) {
	store := NewSQLiteStore(":memory:")
	_, err := store.Exists(context.Background(), "1")
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, store.EnsureSchema(context.Background()), ErrNotConnected)
	require.NoError(t, store.Close())
}
