package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	uploaded_by TEXT NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS search_history (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	query TEXT NOT NULL,
	response TEXT NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	response_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_history_user_created ON search_history(user_id, created_at DESC);
`

// EnsureSchema creates the documents and search_history tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
