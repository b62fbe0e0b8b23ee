// Package batch holds the reconciliation sweep: the asynchronous path that
// repairs rows whose deletion instant has passed and reclaims storage from
// rows that have been soft-deleted long enough. It is scoped to ephemeral
// TLDs (probe and load-test namespaces) and never touches production TLDs.
package batch

import (
	"context"
	"log/slog"
	"time"

	"regcore/internal/registry/billing"
	"regcore/internal/registry/dns"
	"regcore/internal/registry/metrics"
	"regcore/internal/registry/models"
	"regcore/internal/registry/store"
	"regcore/internal/registry/store/domains"
	id "regcore/pkg/domain"
	pstrings "regcore/pkg/platform/strings"
	"regcore/pkg/requestcontext"
)

const (
	// defaultUsedWindow protects freshly created rows: anything younger
	// may still be mid-provisioning and is never swept.
	defaultUsedWindow = time.Hour
	// defaultRetention is how long a soft-deleted row lingers before the
	// sweep reclaims it, leaving time for DNS propagation and audits of
	// the terminal state.
	defaultRetention = time.Hour

	defaultBatchSize   = 1000
	defaultMaxDuration = 20 * time.Hour
)

// DomainStore is the slice of the domain store the sweep needs.
type DomainStore interface {
	ListSweepCandidates(ctx context.Context, query domains.SweepQuery) ([]*models.Domain, error)
	Update(ctx context.Context, d *models.Domain) error
	HardDelete(ctx context.Context, repoIDs []id.RepoID) error
	DeleteHostsByNames(ctx context.Context, names []string) error
}

// HistoryStore records sweep mutations and is drained by the cascade.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
	DeleteByRepoIDs(ctx context.Context, repoIDs []id.RepoID) error
}

// Cascader removes dependent rows during a hard delete.
type Cascader interface {
	DeleteByRepoIDs(ctx context.Context, repoIDs []id.RepoID) error
}

// Params scope one sweep run.
type Params struct {
	// TLDs is the ephemeral namespaces to sweep. An empty list makes the
	// run a no-op rather than an accidental full-registry sweep.
	TLDs []string
	// DryRun reports what one batch would do without writing anything.
	DryRun bool
	// BatchSize bounds one transaction; defaults to 1000.
	BatchSize int
	// MaxDuration is the wall-clock ceiling for the whole run; the sweep
	// stops cleanly between batches when it is reached. Defaults to 20h.
	MaxDuration time.Duration
}

// Result summarizes one sweep run.
type Result struct {
	SoftDeleted     int
	HardDeleted     int
	WouldSoftDelete int
	WouldHardDelete int
	Defective       int
	Batches         int
	// Truncated is true when the duration ceiling stopped the run early.
	Truncated bool
}

// Sweeper drives the reconciliation sweep. Every batch is one serializable
// transaction, so a crash between batches loses nothing: the next run picks
// up the same candidates.
type Sweeper struct {
	txRunner store.Tx
	domains  DomainStore
	billing  *billing.Generator
	dns      *dns.Notifier
	history  HistoryStore
	polls    Cascader
	ledger   Cascader

	registrarID id.RegistrarID
	usedWindow  time.Duration
	retention   time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithMetrics attaches sweep instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithRegistrarID overrides the registry-operator identity stamped on
// sweep history entries.
func WithRegistrarID(registrarID id.RegistrarID) Option {
	return func(s *Sweeper) { s.registrarID = registrarID }
}

// WithUsedWindow overrides how long a freshly created row is protected
// from the sweep.
func WithUsedWindow(d time.Duration) Option {
	return func(s *Sweeper) { s.usedWindow = d }
}

// WithRetention overrides how long a soft-deleted row lingers before it
// is reclaimed.
func WithRetention(d time.Duration) Option {
	return func(s *Sweeper) { s.retention = d }
}

// NewSweeper wires the sweep over the same stores the command flows use.
// polls and ledger drain the poll-message and billing rows of hard-deleted
// domains.
func NewSweeper(txRunner store.Tx, domainStore DomainStore, gen *billing.Generator, notifier *dns.Notifier, history HistoryStore, polls, ledger Cascader, opts ...Option) *Sweeper {
	s := &Sweeper{
		txRunner:    txRunner,
		domains:     domainStore,
		billing:     gen,
		dns:         notifier,
		history:     history,
		polls:       polls,
		ledger:      ledger,
		registrarID: id.RegistrarID("registry"),
		usedWindow:  defaultUsedWindow,
		retention:   defaultRetention,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run executes one sweep. A dry run processes exactly one batch and writes
// nothing; a real run loops until a batch comes back short or the duration
// ceiling is hit.
func (s *Sweeper) Run(ctx context.Context, params Params) (Result, error) {
	start := time.Now()
	params.TLDs = pstrings.DedupeAndTrimLower(params.TLDs)
	if params.BatchSize <= 0 {
		params.BatchSize = defaultBatchSize
	}
	if params.MaxDuration <= 0 {
		params.MaxDuration = defaultMaxDuration
	}

	var result Result
	if len(params.TLDs) == 0 {
		s.logger.WarnContext(ctx, "sweep invoked with no TLDs in scope; nothing to do")
		return result, nil
	}

	for {
		if time.Since(start) > params.MaxDuration {
			result.Truncated = true
			s.logger.WarnContext(ctx, "sweep hit its duration ceiling",
				"elapsed", time.Since(start), "ceiling", params.MaxDuration)
			break
		}

		processed, candidates, err := s.runBatch(ctx, params, &result)
		if err != nil {
			s.observeRun("failure", start)
			return result, err
		}
		result.Batches++

		if params.DryRun {
			break
		}
		// A short batch means the backlog is drained. A batch where every
		// candidate was skipped as defective must also stop, or the sweep
		// would reselect the same rows forever.
		if candidates < params.BatchSize || processed == 0 {
			break
		}
	}

	s.observeRun("success", start)
	s.logger.InfoContext(ctx, "sweep finished",
		"soft_deleted", result.SoftDeleted, "hard_deleted", result.HardDeleted,
		"would_soft_delete", result.WouldSoftDelete, "would_hard_delete", result.WouldHardDelete,
		"defective", result.Defective, "batches", result.Batches, "dry_run", params.DryRun)
	return result, nil
}

func (s *Sweeper) runBatch(ctx context.Context, params Params, result *Result) (processed, candidates int, err error) {
	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		batch, err := s.domains.ListSweepCandidates(ctx, domains.SweepQuery{
			TLDs:             params.TLDs,
			UsedCutoff:       now.Add(-s.usedWindow),
			SoftDeleteCutoff: now.Add(-s.retention),
			Now:              now,
			Limit:            params.BatchSize,
		})
		if err != nil {
			return err
		}
		candidates = len(batch)

		var reclaim []*models.Domain
		for _, d := range batch {
			if err := d.CheckConsistency(); err != nil {
				result.Defective++
				s.logger.ErrorContext(ctx, "sweep skipping defective row",
					"domain", d.Name, "repo_id", d.RepoID, "error", err)
				continue
			}
			if d.IsActive(now) {
				if params.DryRun {
					result.WouldSoftDelete++
					processed++
					continue
				}
				if err := s.softDelete(ctx, d, now); err != nil {
					return err
				}
				result.SoftDeleted++
				processed++
				continue
			}
			if params.DryRun {
				result.WouldHardDelete++
				processed++
				continue
			}
			reclaim = append(reclaim, d)
		}

		if len(reclaim) > 0 {
			if err := s.hardDelete(ctx, reclaim); err != nil {
				return err
			}
			result.HardDeleted += len(reclaim)
			processed += len(reclaim)
		}
		return nil
	})
	return processed, candidates, err
}

// softDelete applies the same terminal mutation as the synchronous delete
// flow's end state: the deletion instant arrives now, statuses, grace
// periods, and any outstanding transfer request go away, auto-renew stops,
// and the zone is refreshed. Clearing the transfer data together with its
// status keeps the row consistent so the next run can reclaim it.
func (s *Sweeper) softDelete(ctx context.Context, d *models.Domain, now time.Time) error {
	d.DeletionTime = now
	d.LastUpdateTime = now
	d.Statuses = models.NewStatusSet()
	d.GracePeriods = nil
	d.PendingTransfer = nil

	if err := s.billing.CloseRecurrence(ctx, d.RepoID, now); err != nil {
		return err
	}
	if err := s.domains.Update(ctx, d); err != nil {
		return err
	}
	entry, err := models.NewHistoryEntry(d, models.HistoryDomainDelete,
		s.registrarID, true, "reconciliation sweep", now)
	if err != nil {
		return err
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return err
	}
	if err := s.dns.RequestRefresh(ctx, d.Name, now); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SweepDomainsTotal.WithLabelValues("soft_delete").Inc()
	}
	return nil
}

// hardDelete reclaims fully dead rows. Children go first and the parent
// row last, so a transient failure mid-cascade leaves the domain
// discoverable by the next run instead of orphaning its dependents.
func (s *Sweeper) hardDelete(ctx context.Context, batch []*models.Domain) error {
	repoIDs := make([]id.RepoID, 0, len(batch))
	var hostNames []string
	for _, d := range batch {
		repoIDs = append(repoIDs, d.RepoID)
		hostNames = append(hostNames, d.SubordinateHosts...)
	}

	if err := s.domains.DeleteHostsByNames(ctx, hostNames); err != nil {
		return err
	}
	if err := s.polls.DeleteByRepoIDs(ctx, repoIDs); err != nil {
		return err
	}
	if err := s.ledger.DeleteByRepoIDs(ctx, repoIDs); err != nil {
		return err
	}
	if err := s.history.DeleteByRepoIDs(ctx, repoIDs); err != nil {
		return err
	}
	if err := s.domains.HardDelete(ctx, repoIDs); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SweepDomainsTotal.WithLabelValues("hard_delete").Add(float64(len(repoIDs)))
	}
	return nil
}

func (s *Sweeper) observeRun(outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.SweepRunsTotal.WithLabelValues(outcome).Inc()
	s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
}
