// Package audit keeps an optional Postgres trail of generate/revoke events.
// A nil *Log is a valid no-op, so the bot runs without a database.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event kinds.
const (
	KindGenerated = "generated"
	KindRevoked   = "revoked"
)

// Event is one audited action. The session string itself is never stored.
type Event struct {
	AttemptID uuid.UUID
	Kind      string
	UserID    int64
	Phone     string
}

// Log writes events to the audit table.
type Log struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and returns a Log. An empty DSN returns nil,
// which disables auditing.
func Open(ctx context.Context, dsn string) (*Log, error) {
	if dsn == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging audit database: %w", err)
	}
	return &Log{pool: pool}, nil
}

// Record inserts one event. Best-effort: failures are logged, the caller's
// flow is never blocked on the audit trail.
func (l *Log) Record(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO audit_events (attempt_id, kind, user_id, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.AttemptID, ev.Kind, ev.UserID, ev.Phone, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("audit insert failed", "kind", ev.Kind, "user", ev.UserID, "err", err)
	}
}

// CountSince returns the number of events of the given kind created after t.
func (l *Log) CountSince(ctx context.Context, kind string, t time.Time) (int, error) {
	if l == nil {
		return 0, nil
	}
	var n int
	err := l.pool.QueryRow(ctx,
		`SELECT count(*) FROM audit_events WHERE kind = $1 AND created_at >= $2`,
		kind, t,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting audit events: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (l *Log) Close() {
	if l != nil {
		l.pool.Close()
	}
}
