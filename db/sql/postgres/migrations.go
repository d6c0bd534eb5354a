package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationLockID serialises Migrate across processes sharing a database.
const migrationLockID = 0x74726b74

// Schema version N is migrations[N-1].
var migrations = []string{
	KVTableSchema,
	`CREATE INDEX IF NOT EXISTS durable_kv_expires_at ON durable_kv (expires_at) WHERE expires_at IS NOT NULL`,
}

const versionTableSchema = `CREATE TABLE IF NOT EXISTS durable_kv_schema (
	version    INTEGER PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate applies pending migrations in one transaction and reports how many ran.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("postgres: db is nil")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return 0, fmt.Errorf("postgres: migrate: lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, versionTableSchema); err != nil {
		return 0, fmt.Errorf("postgres: migrate: %w", err)
	}
	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM durable_kv_schema`).Scan(&current); err != nil {
		return 0, fmt.Errorf("postgres: migrate: read version: %w", err)
	}

	applied := 0
	for v := current + 1; v <= len(migrations); v++ {
		if _, err := tx.ExecContext(ctx, migrations[v-1]); err != nil {
			return 0, fmt.Errorf("postgres: migrate to %d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO durable_kv_schema (version) VALUES ($1)`, v); err != nil {
			return 0, fmt.Errorf("postgres: migrate to %d: %w", v, err)
		}
		applied++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: migrate: %w", err)
	}
	return applied, nil
}
