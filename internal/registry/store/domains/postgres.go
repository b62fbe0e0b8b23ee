// Package domains persists the Domain aggregate: the parent row plus its
// grace-period and subordinate-host rows. The aggregate is loaded and
// saved as a unit so no commit boundary ever observes a half-written
// resource.
package domains

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/platform/sentinel"
	"regcore/pkg/platform/tx"
)

// SweepQuery selects reconciliation candidates. A row qualifies when it is
// in one of the scoped TLDs, is not a nic.* registry-internal name, has no
// subordinate hosts, was created before UsedCutoff, and is either still
// live or was soft-deleted before SoftDeleteCutoff. Rows soft-deleted in
// between are left alone so DNS propagation can finish.
type SweepQuery struct {
	TLDs             []string
	UsedCutoff       time.Time
	SoftDeleteCutoff time.Time
	Now              time.Time
	Limit            int
}

// PostgresStore persists domains in PostgreSQL. It is pure I/O; legality
// decisions live in the lifecycle engine and the service layer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed domain store around the given
// handle; pass the replica handle to build a lagging read-only view.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const domainColumns = `repo_id, name, tld, registrar_id, creation_time, expiration_time,
		deletion_time, last_update_time, statuses,
		transfer_gaining_registrar_id, transfer_losing_registrar_id,
		transfer_request_time, transfer_expiration_time`

// Create inserts a new aggregate. The caller must have verified inside the
// same transaction that no live domain holds the name; a duplicate repo id
// maps to ErrAlreadyExists.
func (s *PostgresStore) Create(ctx context.Context, d *models.Domain) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO domains (`+domainColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, insertArgs(d)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create domain %s: %w", d.Name, sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("create domain %s: %w", d.Name, err)
	}
	return s.replaceGracePeriods(ctx, d)
}

// Update rewrites the parent row and replaces its grace-period rows.
func (s *PostgresStore) Update(ctx context.Context, d *models.Domain) error {
	q := tx.Executor(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE domains SET
			name = $2, tld = $3, registrar_id = $4, creation_time = $5,
			expiration_time = $6, deletion_time = $7, last_update_time = $8,
			statuses = $9, transfer_gaining_registrar_id = $10,
			transfer_losing_registrar_id = $11, transfer_request_time = $12,
			transfer_expiration_time = $13
		WHERE repo_id = $1
	`, insertArgs(d)...)
	if err != nil {
		return fmt.Errorf("update domain %s: %w", d.RepoID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update domain %s: %w", d.RepoID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update domain %s: %w", d.RepoID, sentinel.ErrNotFound)
	}
	return s.replaceGracePeriods(ctx, d)
}

// GetLiveByName loads the single live aggregate holding the name, if any.
func (s *PostgresStore) GetLiveByName(ctx context.Context, name string, now time.Time) (*models.Domain, error) {
	q := tx.Executor(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE name = $1 AND creation_time <= $2 AND deletion_time > $2
	`, name, now)
	d, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain %s: %w", name, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get domain %s: %w", name, err)
	}
	return s.loadDependents(ctx, d)
}

// GetByRepoID loads an aggregate regardless of liveness.
func (s *PostgresStore) GetByRepoID(ctx context.Context, repoID id.RepoID) (*models.Domain, error) {
	q := tx.Executor(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT `+domainColumns+` FROM domains WHERE repo_id = $1
	`, repoID.String())
	d, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain %s: %w", repoID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get domain %s: %w", repoID, err)
	}
	return s.loadDependents(ctx, d)
}

// ExistsLive reports whether a live domain currently holds the name.
func (s *PostgresStore) ExistsLive(ctx context.Context, name string, now time.Time) (bool, error) {
	q := tx.Executor(ctx, s.db)
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM domains
			WHERE name = $1 AND creation_time <= $2 AND deletion_time > $2
		)
	`, name, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists live %s: %w", name, err)
	}
	return exists, nil
}

// ListSweepCandidates returns up to Limit light aggregates (no grace rows)
// matching the reconciliation selection.
func (s *PostgresStore) ListSweepCandidates(ctx context.Context, query SweepQuery) ([]*models.Domain, error) {
	q := tx.Executor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+domainColumns+` FROM domains
		WHERE tld = ANY($1)
		  AND name NOT LIKE 'nic.%'
		  AND NOT EXISTS (SELECT 1 FROM hosts WHERE hosts.superordinate_repo_id = domains.repo_id)
		  AND creation_time < $2
		  AND (deletion_time > $3 OR deletion_time < $4)
		ORDER BY creation_time
		LIMIT $5
	`, pq.Array(query.TLDs), query.UsedCutoff, query.Now, query.SoftDeleteCutoff, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("list sweep candidates: %w", err)
	}
	defer rows.Close()

	var out []*models.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sweep candidate: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sweep candidates: %w", err)
	}
	return out, nil
}

// HardDelete removes grace-period rows, then the parent rows. The parent
// goes last so a transient failure mid-cascade leaves it discoverable by
// the next sweep; the other dependents are removed by their own stores
// before this call.
func (s *PostgresStore) HardDelete(ctx context.Context, repoIDs []id.RepoID) error {
	if len(repoIDs) == 0 {
		return nil
	}
	q := tx.Executor(ctx, s.db)
	ids := repoIDStrings(repoIDs)
	if _, err := q.ExecContext(ctx, `DELETE FROM grace_periods WHERE domain_repo_id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("hard delete grace periods: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM domains WHERE repo_id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("hard delete domains: %w", err)
	}
	return nil
}

// AddSubordinateHost records a host delegated under the domain.
func (s *PostgresStore) AddSubordinateHost(ctx context.Context, repoID id.RepoID, hostName string) error {
	q := tx.Executor(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO hosts (name, superordinate_repo_id) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET superordinate_repo_id = EXCLUDED.superordinate_repo_id
	`, hostName, repoID.String())
	if err != nil {
		return fmt.Errorf("add subordinate host %s: %w", hostName, err)
	}
	return nil
}

// DeleteHostsByNames removes host rows as part of a hard-delete cascade.
func (s *PostgresStore) DeleteHostsByNames(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	q := tx.Executor(ctx, s.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM hosts WHERE name = ANY($1)`, pq.Array(names)); err != nil {
		return fmt.Errorf("delete hosts: %w", err)
	}
	return nil
}

func (s *PostgresStore) replaceGracePeriods(ctx context.Context, d *models.Domain) error {
	q := tx.Executor(ctx, s.db)
	if _, err := q.ExecContext(ctx, `DELETE FROM grace_periods WHERE domain_repo_id = $1`, d.RepoID.String()); err != nil {
		return fmt.Errorf("replace grace periods for %s: %w", d.RepoID, err)
	}
	for _, gp := range d.GracePeriods {
		var billingEventID any
		if !gp.BillingEventID.IsNil() {
			billingEventID = gp.BillingEventID.String()
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO grace_periods (domain_repo_id, type, expiration_time, registrar_id, billing_event_id)
			VALUES ($1, $2, $3, $4, $5)
		`, d.RepoID.String(), string(gp.Type), gp.ExpirationTime, gp.RegistrarID.String(), billingEventID)
		if err != nil {
			return fmt.Errorf("insert grace period %s for %s: %w", gp.Type, d.RepoID, err)
		}
	}
	return nil
}

func (s *PostgresStore) loadDependents(ctx context.Context, d *models.Domain) (*models.Domain, error) {
	q := tx.Executor(ctx, s.db)

	rows, err := q.QueryContext(ctx, `
		SELECT type, expiration_time, registrar_id, billing_event_id
		FROM grace_periods WHERE domain_repo_id = $1
	`, d.RepoID.String())
	if err != nil {
		return nil, fmt.Errorf("load grace periods for %s: %w", d.RepoID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			gpType         string
			expiration     time.Time
			registrarID    string
			billingEventID sql.NullString
		)
		if err := rows.Scan(&gpType, &expiration, &registrarID, &billingEventID); err != nil {
			return nil, fmt.Errorf("scan grace period for %s: %w", d.RepoID, err)
		}
		gp := models.GracePeriod{
			Type:           models.GracePeriodType(gpType),
			ExpirationTime: expiration,
			RegistrarID:    id.RegistrarID(registrarID),
		}
		if billingEventID.Valid {
			eventID, err := id.ParseBillingEventID(billingEventID.String)
			if err != nil {
				return nil, fmt.Errorf("parse billing event ref for %s: %w", d.RepoID, err)
			}
			gp.BillingEventID = eventID
		}
		d.GracePeriods = append(d.GracePeriods, gp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load grace periods for %s: %w", d.RepoID, err)
	}

	hostRows, err := q.QueryContext(ctx, `
		SELECT name FROM hosts WHERE superordinate_repo_id = $1 ORDER BY name
	`, d.RepoID.String())
	if err != nil {
		return nil, fmt.Errorf("load hosts for %s: %w", d.RepoID, err)
	}
	defer hostRows.Close()
	for hostRows.Next() {
		var name string
		if err := hostRows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan host for %s: %w", d.RepoID, err)
		}
		d.SubordinateHosts = append(d.SubordinateHosts, name)
	}
	if err := hostRows.Err(); err != nil {
		return nil, fmt.Errorf("load hosts for %s: %w", d.RepoID, err)
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomain(row rowScanner) (*models.Domain, error) {
	var d models.Domain
	var repoID, registrarID string
	var statuses pq.StringArray
	var gaining, losing sql.NullString
	var requestTime, transferExpiry sql.NullTime
	err := row.Scan(&repoID, &d.Name, &d.TLD, &registrarID, &d.CreationTime,
		&d.ExpirationTime, &d.DeletionTime, &d.LastUpdateTime, &statuses,
		&gaining, &losing, &requestTime, &transferExpiry)
	if err != nil {
		return nil, err
	}
	d.RepoID = id.RepoID(repoID)
	d.RegistrarID = id.RegistrarID(registrarID)
	d.Statuses = models.ParseStatusSet(statuses)
	if gaining.Valid {
		d.PendingTransfer = &models.TransferData{
			GainingRegistrarID: id.RegistrarID(gaining.String),
			LosingRegistrarID:  id.RegistrarID(losing.String),
			RequestTime:        requestTime.Time,
			ExpirationTime:     transferExpiry.Time,
		}
	}
	return &d, nil
}

func insertArgs(d *models.Domain) []any {
	var gaining, losing any
	var requestTime, expiryTime any
	if d.PendingTransfer != nil {
		gaining = d.PendingTransfer.GainingRegistrarID.String()
		losing = d.PendingTransfer.LosingRegistrarID.String()
		requestTime = d.PendingTransfer.RequestTime
		expiryTime = d.PendingTransfer.ExpirationTime
	}
	return []any{
		d.RepoID.String(), d.Name, d.TLD, d.RegistrarID.String(),
		d.CreationTime, d.ExpirationTime, d.DeletionTime, d.LastUpdateTime,
		pq.Array(d.Statuses.Sorted()), gaining, losing, requestTime, expiryTime,
	}
}

func repoIDStrings(repoIDs []id.RepoID) []string {
	out := make([]string, len(repoIDs))
	for i, r := range repoIDs {
		out[i] = r.String()
	}
	return out
}
