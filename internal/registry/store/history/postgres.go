// Package history persists the immutable audit trail. Entries are only
// ever appended; the sole delete path is the hard-delete cascade of the
// parent resource.
package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/platform/tx"
)

// PostgresStore persists history entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed history store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.HistoryEntry) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO history_entries
			(id, domain_repo_id, type, registrar_id, by_superuser, reason, modification_time, resource_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID.String(), entry.RepoID.String(), string(entry.Type), entry.RegistrarID.String(),
		entry.BySuperuser, entry.Reason, entry.ModificationTime, []byte(entry.ResourceState))
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// ListByRepoID returns the entries for one resource ordered by commit time.
func (s *PostgresStore) ListByRepoID(ctx context.Context, repoID id.RepoID) ([]*models.HistoryEntry, error) {
	q := tx.Executor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, domain_repo_id, type, registrar_id, by_superuser, reason, modification_time, resource_state
		FROM history_entries WHERE domain_repo_id = $1 ORDER BY modification_time
	`, repoID.String())
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	var out []*models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var entryID, domainRepoID, entryType, registrarID string
		var state []byte
		if err := rows.Scan(&entryID, &domainRepoID, &entryType, &registrarID,
			&entry.BySuperuser, &entry.Reason, &entry.ModificationTime, &state); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		parsed, err := id.ParseHistoryEntryID(entryID)
		if err != nil {
			return nil, fmt.Errorf("parse history entry id: %w", err)
		}
		entry.ID = parsed
		entry.RepoID = id.RepoID(domainRepoID)
		entry.Type = models.HistoryType(entryType)
		entry.RegistrarID = id.RegistrarID(registrarID)
		entry.ResourceState = state
		out = append(out, &entry)
	}
	return out, rows.Err()
}

// DeleteByRepoIDs removes entries as part of the hard-delete cascade.
func (s *PostgresStore) DeleteByRepoIDs(ctx context.Context, repoIDs []id.RepoID) error {
	if len(repoIDs) == 0 {
		return nil
	}
	q := tx.Executor(ctx, s.db)
	ids := make([]string, len(repoIDs))
	for i, r := range repoIDs {
		ids[i] = r.String()
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM history_entries WHERE domain_repo_id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("cascade delete history entries: %w", err)
	}
	return nil
}
