// Package poll persists queued registrar notifications. Acknowledging a
// message removes its row; unacknowledged rows disappear with the hard
// delete of the resource they reference.
package poll

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/platform/sentinel"
	"regcore/pkg/platform/tx"
)

// PostgresStore persists poll messages in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed poll message store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Enqueue(ctx context.Context, msg *models.PollMessage) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO poll_messages (id, registrar_id, domain_repo_id, event_time, message)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID.String(), msg.RegistrarID.String(), msg.RepoID.String(), msg.EventTime, msg.Message)
	if err != nil {
		return fmt.Errorf("enqueue poll message: %w", err)
	}
	return nil
}

// ListByRegistrar returns pending messages oldest-first.
func (s *PostgresStore) ListByRegistrar(ctx context.Context, registrarID id.RegistrarID, limit int) ([]*models.PollMessage, error) {
	q := tx.Executor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, registrar_id, domain_repo_id, event_time, message
		FROM poll_messages WHERE registrar_id = $1 ORDER BY event_time LIMIT $2
	`, registrarID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list poll messages: %w", err)
	}
	defer rows.Close()

	var out []*models.PollMessage
	for rows.Next() {
		var msg models.PollMessage
		var msgID, registrar, repoID string
		if err := rows.Scan(&msgID, &registrar, &repoID, &msg.EventTime, &msg.Message); err != nil {
			return nil, fmt.Errorf("scan poll message: %w", err)
		}
		parsed, err := id.ParsePollMessageID(msgID)
		if err != nil {
			return nil, fmt.Errorf("parse poll message id: %w", err)
		}
		msg.ID = parsed
		msg.RegistrarID = id.RegistrarID(registrar)
		msg.RepoID = id.RepoID(repoID)
		out = append(out, &msg)
	}
	return out, rows.Err()
}

// Ack removes one message, scoped to the owning registrar so one party
// cannot acknowledge another's notifications.
func (s *PostgresStore) Ack(ctx context.Context, msgID id.PollMessageID, registrarID id.RegistrarID) error {
	q := tx.Executor(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		DELETE FROM poll_messages WHERE id = $1 AND registrar_id = $2
	`, msgID.String(), registrarID.String())
	if err != nil {
		return fmt.Errorf("ack poll message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ack poll message: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("poll message %s: %w", msgID, sentinel.ErrNotFound)
	}
	return nil
}

// DeleteByRepoIDs removes messages as part of the hard-delete cascade.
func (s *PostgresStore) DeleteByRepoIDs(ctx context.Context, repoIDs []id.RepoID) error {
	if len(repoIDs) == 0 {
		return nil
	}
	q := tx.Executor(ctx, s.db)
	ids := make([]string, len(repoIDs))
	for i, r := range repoIDs {
		ids[i] = r.String()
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM poll_messages WHERE domain_repo_id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("cascade delete poll messages: %w", err)
	}
	return nil
}
