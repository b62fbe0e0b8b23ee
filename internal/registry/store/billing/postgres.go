// Package billing persists the append-only billing ledger: one-time
// events, the per-domain recurrence, and cancellations. Rows are inserted
// and deleted (by the hard-delete cascade), never updated in place — the
// single exception is the recurrence end time, which is the documented
// mutable field of an otherwise open-ended event.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/platform/sentinel"
	"regcore/pkg/platform/tx"
)

// PostgresStore persists billing events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed billing store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateOneTime(ctx context.Context, ev *models.OneTimeEvent) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO billing_onetime_events
			(id, domain_repo_id, registrar_id, action, amount, currency, years, event_time, billing_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID.String(), ev.RepoID.String(), ev.RegistrarID.String(), string(ev.Action),
		ev.Cost.Amount, ev.Cost.Currency, ev.Years, ev.EventTime, ev.BillingTime)
	if err != nil {
		return fmt.Errorf("create one-time billing event: %w", err)
	}
	return nil
}

// UpsertRecurrence creates the per-domain recurrence or moves its end
// time. The unique domain key makes the upsert the idempotence point for
// auto-renew extension.
func (s *PostgresStore) UpsertRecurrence(ctx context.Context, ev *models.RecurrenceEvent) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO billing_recurrences (id, domain_repo_id, registrar_id, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (domain_repo_id) DO UPDATE SET
			registrar_id = EXCLUDED.registrar_id,
			end_time = EXCLUDED.end_time
	`, ev.ID.String(), ev.RepoID.String(), ev.RegistrarID.String(), ev.StartTime, ev.EndTime)
	if err != nil {
		return fmt.Errorf("upsert billing recurrence: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecurrence(ctx context.Context, repoID id.RepoID) (*models.RecurrenceEvent, error) {
	q := tx.Executor(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, domain_repo_id, registrar_id, start_time, end_time
		FROM billing_recurrences WHERE domain_repo_id = $1
	`, repoID.String())

	var ev models.RecurrenceEvent
	var eventID, domainRepoID, registrarID string
	err := row.Scan(&eventID, &domainRepoID, &registrarID, &ev.StartTime, &ev.EndTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("recurrence for %s: %w", repoID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get billing recurrence: %w", err)
	}
	parsed, err := id.ParseBillingEventID(eventID)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence id: %w", err)
	}
	ev.ID = parsed
	ev.RepoID = id.RepoID(domainRepoID)
	ev.RegistrarID = id.RegistrarID(registrarID)
	return &ev, nil
}

// CreateCancellationIfAbsent records a cancellation unless the referenced
// event already has one. The unique index on the cancelled event id is the
// idempotence point: replays insert nothing and report created=false.
func (s *PostgresStore) CreateCancellationIfAbsent(ctx context.Context, ev *models.CancellationEvent) (bool, error) {
	q := tx.Executor(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		INSERT INTO billing_cancellations
			(id, domain_repo_id, registrar_id, cancelled_event_id, event_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cancelled_event_id) DO NOTHING
	`, ev.ID.String(), ev.RepoID.String(), ev.RegistrarID.String(),
		ev.CancelledEventID.String(), ev.EventTime, ev.Reason)
	if err != nil {
		return false, fmt.Errorf("create billing cancellation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create billing cancellation: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) ListOneTimes(ctx context.Context, repoID id.RepoID) ([]*models.OneTimeEvent, error) {
	q := tx.Executor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, domain_repo_id, registrar_id, action, amount, currency, years, event_time, billing_time
		FROM billing_onetime_events WHERE domain_repo_id = $1 ORDER BY event_time
	`, repoID.String())
	if err != nil {
		return nil, fmt.Errorf("list one-time billing events: %w", err)
	}
	defer rows.Close()

	var out []*models.OneTimeEvent
	for rows.Next() {
		var ev models.OneTimeEvent
		var eventID, domainRepoID, registrarID, action string
		if err := rows.Scan(&eventID, &domainRepoID, &registrarID, &action,
			&ev.Cost.Amount, &ev.Cost.Currency, &ev.Years, &ev.EventTime, &ev.BillingTime); err != nil {
			return nil, fmt.Errorf("scan one-time billing event: %w", err)
		}
		parsed, err := id.ParseBillingEventID(eventID)
		if err != nil {
			return nil, fmt.Errorf("parse one-time billing event id: %w", err)
		}
		ev.ID = parsed
		ev.RepoID = id.RepoID(domainRepoID)
		ev.RegistrarID = id.RegistrarID(registrarID)
		ev.Action = models.BillingAction(action)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListCancellations(ctx context.Context, repoID id.RepoID) ([]*models.CancellationEvent, error) {
	q := tx.Executor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, domain_repo_id, registrar_id, cancelled_event_id, event_time, reason
		FROM billing_cancellations WHERE domain_repo_id = $1 ORDER BY event_time
	`, repoID.String())
	if err != nil {
		return nil, fmt.Errorf("list billing cancellations: %w", err)
	}
	defer rows.Close()

	var out []*models.CancellationEvent
	for rows.Next() {
		var ev models.CancellationEvent
		var eventID, domainRepoID, registrarID, cancelledID string
		if err := rows.Scan(&eventID, &domainRepoID, &registrarID, &cancelledID, &ev.EventTime, &ev.Reason); err != nil {
			return nil, fmt.Errorf("scan billing cancellation: %w", err)
		}
		parsed, err := id.ParseBillingEventID(eventID)
		if err != nil {
			return nil, fmt.Errorf("parse cancellation id: %w", err)
		}
		cancelled, err := id.ParseBillingEventID(cancelledID)
		if err != nil {
			return nil, fmt.Errorf("parse cancelled event id: %w", err)
		}
		ev.ID = parsed
		ev.CancelledEventID = cancelled
		ev.RepoID = id.RepoID(domainRepoID)
		ev.RegistrarID = id.RegistrarID(registrarID)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// DeleteByRepoIDs removes every billing row owned by the given domains, as
// part of the hard-delete cascade.
func (s *PostgresStore) DeleteByRepoIDs(ctx context.Context, repoIDs []id.RepoID) error {
	if len(repoIDs) == 0 {
		return nil
	}
	q := tx.Executor(ctx, s.db)
	ids := make([]string, len(repoIDs))
	for i, r := range repoIDs {
		ids[i] = r.String()
	}
	for _, table := range []string{"billing_onetime_events", "billing_recurrences", "billing_cancellations"} {
		if _, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE domain_repo_id = ANY($1)`, pq.Array(ids)); err != nil {
			return fmt.Errorf("cascade delete %s: %w", table, err)
		}
	}
	return nil
}
