package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKVImplementations(t *testing.T) {
	stores := map[string]func(t *testing.T) (KV, *time.Time){
		"memory": func(t *testing.T) (KV, *time.Time) {
			m := NewMemory()
			now := time.Now()
			m.now = func() time.Time { return now }
			return m, &now
		},
		"sqlite": func(t *testing.T) (KV, *time.Time) {
			s := openTestSQLite(t)
			now := time.Now()
			s.now = func() time.Time { return now }
			return s, &now
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv, clock := open(t)

			_, err := kv.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set(ctx, "a", []byte("1"), 0))
			require.NoError(t, kv.Set(ctx, "a", []byte("2"), 0))
			got, err := kv.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), got)

			require.NoError(t, kv.Set(ctx, "ttl", []byte("x"), time.Minute))
			_, err = kv.Get(ctx, "ttl")
			require.NoError(t, err)
			*clock = clock.Add(2 * time.Minute)
			_, err = kv.Get(ctx, "ttl")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Delete(ctx, "a"))
			_, err = kv.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, kv.Delete(ctx, "never-existed"))
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	type state struct {
		Port int `json:"port"`
	}
	require.NoError(t, SetJSON(ctx, kv, "s", state{Port: 4000}, 0))

	var got state
	require.NoError(t, GetJSON(ctx, kv, "s", &got))
	assert.Equal(t, 4000, got.Port)

	require.NoError(t, kv.Set(ctx, "bad", []byte("{not json"), 0))
	err := GetJSON(ctx, kv, "bad", &got)
	assert.ErrorIs(t, err, ErrCorrupt)

	err = GetJSON(ctx, kv, "absent", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	s := openTestSQLite(t)

	res, err := s.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion(), res.FromVersion)
	assert.Equal(t, CurrentSchemaVersion(), res.ToVersion)
	assert.Empty(t, res.Applied)
}

func TestSQLiteMigrateSkipsExistingColumn(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")

	// A v1 database that somebody already patched by hand.
	raw, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value BLOB NOT NULL, expires_at INTEGER, updated_at INTEGER NOT NULL DEFAULT 0)`)
	require.NoError(t, err)
	_, err = raw.Exec(`PRAGMA user_version = 1`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, CurrentSchemaVersion(), version)

	res := s.OpenMigration()
	assert.Equal(t, 1, res.FromVersion)
	assert.Equal(t, []string{"add kv.updated_at", "index kv.expires_at"}, res.Applied)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestSQLitePurge(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, s.Set(ctx, "forever", []byte("2"), 0))

	now = now.Add(time.Hour)
	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(ctx, "forever")
	assert.NoError(t, err)
}
