package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"time"
)

// documentLockSpace keeps document locks apart from other advisory locks.
const documentLockSpace = 7453

const unlockTimeout = 10 * time.Second

// DocumentLocker holds a session-level advisory lock per document id. The lock
// lives on a dedicated pooled connection, so the api and worker processes
// serialize against each other through the shared database.
type DocumentLocker struct {
	db *sql.DB
}

func NewDocumentLocker(db *sql.DB) *DocumentLocker {
	return &DocumentLocker{db: db}
}

func (l *DocumentLocker) LockDocument(ctx context.Context, documentID string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1, hashtext($2))`, documentLockSpace, documentID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire document lock: %w", err)
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		if _, err := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1, hashtext($2))`, documentLockSpace, documentID); err != nil {
			slog.Error("document_unlock_failed", "document_id", documentID, "error", err)
			// A connection still holding the lock must not go back to the pool.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		_ = conn.Close()
	}, nil
}
