package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// MigrationResult describes one Migrate run.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Applied     []string
}

type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// Schema versions are tracked in PRAGMA user_version:
// v1: kv table
// v2: kv.updated_at
// v3: index on kv.expires_at
var migrations = []migration{
	{1, "create kv", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS kv (
				key        TEXT PRIMARY KEY,
				value      BLOB NOT NULL,
				expires_at INTEGER
			)`)
		return err
	}},
	{2, "add kv.updated_at", func(ctx context.Context, tx *sql.Tx) error {
		return addColumn(ctx, tx, "kv", "updated_at", "INTEGER NOT NULL DEFAULT 0")
	}},
	{3, "index kv.expires_at", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv (expires_at)`)
		return err
	}},
}

// CurrentSchemaVersion is the version a fully migrated database reports.
func CurrentSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies every migration newer than the database's user_version.
// Each migration runs in its own transaction together with the version bump.
func (s *SQLite) Migrate(ctx context.Context) (MigrationResult, error) {
	var from int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&from); err != nil {
		return MigrationResult{}, fmt.Errorf("failed to read schema version: %w", err)
	}

	result := MigrationResult{FromVersion: from, ToVersion: from}
	for _, m := range migrations {
		if m.version <= result.ToVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return result, fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if err := m.apply(ctx, tx); err != nil {
			_ = tx.Rollback()
			return result, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return result, fmt.Errorf("set schema version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return result, fmt.Errorf("commit migration %d: %w", m.version, err)
		}

		slog.Debug("Migration applied", "version", m.version, "name", m.name)
		result.ToVersion = m.version
		result.Applied = append(result.Applied, m.name)
	}
	return result, nil
}

// addColumn runs ALTER TABLE ADD COLUMN unless PRAGMA table_info already
// lists the column.
func addColumn(ctx context.Context, tx *sql.Tx, table, column, def string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		slog.Debug("Column already exists, skipping", "table", table, "column", column)
		return nil
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, def))
	return err
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table_info(%s): %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &primaryKey); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
