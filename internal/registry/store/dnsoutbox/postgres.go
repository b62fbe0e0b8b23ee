// Package dnsoutbox stores DNS refresh requests in a transactional outbox.
// A request row commits atomically with the mutation that caused it; the
// relay publishes pending rows after commit and marks them published.
package dnsoutbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"regcore/pkg/platform/tx"
)

// Request is one queued DNS refresh.
type Request struct {
	ID          int64
	DomainName  string
	RequestedAt time.Time
	PublishedAt *time.Time
}

// PostgresStore persists the outbox in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed outbox store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Enqueue records a refresh request. Requests for a name that already has
// an unpublished row collapse into it.
func (s *PostgresStore) Enqueue(ctx context.Context, domainName string, at time.Time) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO dns_refresh_requests (domain_name, requested_at)
		VALUES ($1, $2)
		ON CONFLICT (domain_name) WHERE published_at IS NULL DO NOTHING
	`, domainName, at)
	if err != nil {
		return fmt.Errorf("enqueue dns refresh: %w", err)
	}
	return nil
}

// ListPending returns unpublished requests oldest-first.
func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]Request, error) {
	q := tx.Executor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, domain_name, requested_at
		FROM dns_refresh_requests
		WHERE published_at IS NULL
		ORDER BY requested_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending dns refreshes: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.DomainName, &req.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan dns refresh: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// MarkPublished stamps the given rows so the relay never re-sends them.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	q := tx.Executor(ctx, s.db)
	if _, err := q.ExecContext(ctx, `
		UPDATE dns_refresh_requests SET published_at = $1 WHERE id = ANY($2)
	`, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark dns refreshes published: %w", err)
	}
	return nil
}
