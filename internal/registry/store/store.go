// Package store holds the pieces shared by every entity store: the
// transactional boundary, transient-error classification, and the schema.
//
// The registry runs two kinds of database handles. The primary handle
// backs every mutating flow through PostgresTx; a replica handle may serve
// purely informational reads and is allowed to lag. Anything with billing
// or legal consequences must go through the primary — the split into two
// distinct runner values makes that rule visible at wiring time instead of
// being a convention.
package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	dErrors "regcore/pkg/domain-errors"
	"regcore/pkg/platform/tx"
)

const defaultTxTimeout = 10 * time.Second

// Tx is the transactional boundary every flow and sweep runs inside. The
// callback's context carries the open transaction; stores pick it up via
// pkg/platform/tx and all their writes commit or roll back as one.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PostgresTx runs callbacks inside a serializable SQL transaction against
// the primary. Serialization conflicts surface as retryable errors; the
// caller owns the bounded retry.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTx wraps the primary database handle.
func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db, timeout: defaultTxTimeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return classify(err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// InMemoryTx is the transactional boundary for memory-backed wiring and
// unit tests: one coarse lock serializes every flow, which matches the
// read-your-writes guarantee the SQL runner gives without simulating
// rollback.
type InMemoryTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewInMemoryTx builds the in-memory runner.
func NewInMemoryTx() *InMemoryTx {
	return &InMemoryTx{timeout: defaultTxTimeout}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// IsTransient reports whether a store error is worth retrying in a fresh
// transaction: serialization failures, deadlocks, and dropped connections.
// Everything else is either a business outcome or a real defect.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"08000", "08003", "08006": // connection failures
			return true
		}
	}
	return dErrors.IsRetryable(err)
}

// classify wraps infrastructure failures so callers can tell a retryable
// conflict from a permanent one.
func classify(err error) error {
	if IsTransient(err) {
		return dErrors.Wrap(err, dErrors.CodeRetryable, "transient store failure")
	}
	return err
}
