package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqlitePingTimeout = 5 * time.Second

// SQLite is a KV persisted to a local database file.
type SQLite struct {
	db       *sql.DB
	now      func() time.Time
	migrated MigrationResult
}

// OpenSQLite opens (creating if needed) the database at path and brings its
// schema up to date.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer is all a local state file needs; it also keeps SQLITE_BUSY away.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, sqlitePingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	res, err := s.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.migrated = res
	return s, nil
}

// OpenMigration reports what OpenSQLite had to migrate.
func (s *SQLite) OpenMigration() MigrationResult {
	return s.migrated
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if expiresAt.Valid && s.now().UnixMilli() >= expiresAt.Int64 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			slog.Debug("Expired key cleanup failed", "key", key, "error", err)
		}
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, key, value, expiresAt, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Purge removes expired rows and reports how many went.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired keys: %w", err)
	}
	return res.RowsAffected()
}
