package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the DDL for every table the registry core owns. Dependent rows
// reference their parent by repo id as a plain column, not a foreign-key
// constraint with cascading deletes: cascade order is an explicit,
// reviewable sequence of store calls (children first, parent last), never
// something the database does implicitly.
const Schema = `
CREATE TABLE IF NOT EXISTS domains (
    repo_id          TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    tld              TEXT NOT NULL,
    registrar_id     TEXT NOT NULL,
    creation_time    TIMESTAMPTZ NOT NULL,
    expiration_time  TIMESTAMPTZ NOT NULL,
    deletion_time    TIMESTAMPTZ NOT NULL,
    last_update_time TIMESTAMPTZ NOT NULL,
    statuses         TEXT[] NOT NULL DEFAULT '{}',
    transfer_gaining_registrar_id TEXT,
    transfer_losing_registrar_id  TEXT,
    transfer_request_time         TIMESTAMPTZ,
    transfer_expiration_time      TIMESTAMPTZ
);

-- A name may appear on many soft-deleted rows but on at most one live one;
-- liveness depends on the clock, so the single-live-row rule is enforced by
-- the create flow inside its serializable transaction, not by an index.
CREATE INDEX IF NOT EXISTS domains_name_idx ON domains (name);
CREATE INDEX IF NOT EXISTS domains_tld_deletion_idx ON domains (tld, deletion_time);

CREATE TABLE IF NOT EXISTS grace_periods (
    domain_repo_id   TEXT NOT NULL,
    type             TEXT NOT NULL,
    expiration_time  TIMESTAMPTZ NOT NULL,
    registrar_id     TEXT NOT NULL,
    billing_event_id UUID,
    PRIMARY KEY (domain_repo_id, type)
);

CREATE TABLE IF NOT EXISTS hosts (
    name                  TEXT PRIMARY KEY,
    superordinate_repo_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS hosts_superordinate_idx ON hosts (superordinate_repo_id);

CREATE TABLE IF NOT EXISTS billing_onetime_events (
    id             UUID PRIMARY KEY,
    domain_repo_id TEXT NOT NULL,
    registrar_id   TEXT NOT NULL,
    action         TEXT NOT NULL,
    amount         BIGINT NOT NULL,
    currency       TEXT NOT NULL,
    years          INT NOT NULL,
    event_time     TIMESTAMPTZ NOT NULL,
    billing_time   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS billing_onetime_domain_idx ON billing_onetime_events (domain_repo_id);

CREATE TABLE IF NOT EXISTS billing_recurrences (
    id             UUID PRIMARY KEY,
    domain_repo_id TEXT NOT NULL UNIQUE,
    registrar_id   TEXT NOT NULL,
    start_time     TIMESTAMPTZ NOT NULL,
    end_time       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS billing_cancellations (
    id                 UUID PRIMARY KEY,
    domain_repo_id     TEXT NOT NULL,
    registrar_id       TEXT NOT NULL,
    cancelled_event_id UUID NOT NULL UNIQUE,
    event_time         TIMESTAMPTZ NOT NULL,
    reason             TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS billing_cancellations_domain_idx ON billing_cancellations (domain_repo_id);

CREATE TABLE IF NOT EXISTS history_entries (
    id                UUID PRIMARY KEY,
    domain_repo_id    TEXT NOT NULL,
    type              TEXT NOT NULL,
    registrar_id      TEXT NOT NULL,
    by_superuser      BOOLEAN NOT NULL DEFAULT FALSE,
    reason            TEXT NOT NULL DEFAULT '',
    modification_time TIMESTAMPTZ NOT NULL,
    resource_state    JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS history_domain_time_idx ON history_entries (domain_repo_id, modification_time);

CREATE TABLE IF NOT EXISTS poll_messages (
    id             UUID PRIMARY KEY,
    registrar_id   TEXT NOT NULL,
    domain_repo_id TEXT NOT NULL,
    event_time     TIMESTAMPTZ NOT NULL,
    message        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS poll_registrar_idx ON poll_messages (registrar_id, event_time);
CREATE INDEX IF NOT EXISTS poll_domain_idx ON poll_messages (domain_repo_id);

CREATE TABLE IF NOT EXISTS dns_refresh_requests (
    id           BIGSERIAL PRIMARY KEY,
    domain_name  TEXT NOT NULL,
    requested_at TIMESTAMPTZ NOT NULL,
    published_at TIMESTAMPTZ
);

-- At most one unpublished refresh per name; repeated requests collapse.
CREATE UNIQUE INDEX IF NOT EXISTS dns_refresh_pending_idx
    ON dns_refresh_requests (domain_name) WHERE published_at IS NULL;
`

// EnsureSchema applies the DDL. It is idempotent and safe to run on boot;
// production deployments run the same statements through their migration
// pipeline instead.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply registry schema: %w", err)
	}
	return nil
}
