package kv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SiteAuditor/internal/ports"
)

// exercise runs the contract every collaborator must satisfy.
func exercise(t *testing.T, store ports.KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "history_by_country")
	require.NoError(t, err)
	require.False(t, ok, "fresh store must report absent")

	require.NoError(t, store.Set(ctx, "history_by_country", `{"BR":[]}`))
	value, ok, err := store.Get(ctx, "history_by_country")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"BR":[]}`, value)

	require.NoError(t, store.Set(ctx, "history_by_country", `{}`))
	value, _, err = store.Get(ctx, "history_by_country")
	require.NoError(t, err)
	require.Equal(t, `{}`, value, "second write replaces the first")

	_, ok, err = store.Get(ctx, "other")
	require.NoError(t, err)
	require.False(t, ok, "keys are independent")
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	exercise(t, store)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	require.Equal(t, "history_by_country.json", entries[0].Name())
}

func TestFileStoreRejectsUnsafeKeys(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "a/b", `a\b`} {
		require.Error(t, store.Set(context.Background(), key, "x"), "key %q", key)
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kv.db")
	store, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exercise(t, store)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", "v1"))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	value, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", value)
}

func TestPostgresQueries(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)
	store := &SQLStore{dialect: postgresDialect, now: func() time.Time { return stamp }}

	query, args, err := store.getQuery("history_by_country")
	require.NoError(t, err)
	require.Equal(t, "SELECT value FROM kv_store WHERE key = $1", query)
	require.Equal(t, []any{"history_by_country"}, args)

	query, args, err = store.setQuery("history_by_country", "{}")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(query, "INSERT INTO kv_store (key,value,updated_at) VALUES ($1,$2,$3)"), query)
	require.Contains(t, query, "ON CONFLICT (key) DO UPDATE")
	require.Equal(t, []any{"history_by_country", "{}", stamp}, args)
}

func TestSQLiteQueries(t *testing.T) {
	t.Parallel()

	store := &SQLStore{dialect: sqliteDialect, now: func() time.Time { return time.Unix(42, 0) }}

	query, args, err := store.setQuery("k", "v")
	require.NoError(t, err)
	require.Equal(t, "INSERT OR REPLACE INTO kv_store (key,value,updated_at) VALUES (?,?,?)", query)
	require.Equal(t, []any{"k", "v", int64(42)}, args)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		t.Skip("DATABASE_DSN not set")
	}

	store, err := OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.db.Exec(`DELETE FROM kv_store WHERE key IN ('history_by_country', 'other')`)
	require.NoError(t, err)
	exercise(t, store)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	store, err := OpenRedis(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.rdb.Del(ctx, keyPrefix+"history_by_country", keyPrefix+"other").Err())
	exercise(t, store)
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(ctx, Settings{Path: dir})
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, store)

	store, err = Open(ctx, Settings{Driver: "SQLite", Path: dir})
	require.NoError(t, err)
	require.IsType(t, &SQLStore{}, store)
	require.NoError(t, store.Close())
	require.FileExists(t, filepath.Join(dir, sqliteFile))

	_, err = Open(ctx, Settings{Driver: "postgres"})
	require.Error(t, err)

	_, err = Open(ctx, Settings{Driver: "redis", RedisURL: "not a url"})
	require.Error(t, err)

	_, err = Open(ctx, Settings{Driver: "etcd"})
	require.Error(t, err)
}
