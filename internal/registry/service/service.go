// Package service orchestrates the lifecycle command flows. Every mutating
// command runs as one serializable transaction: load the aggregate, let the
// lifecycle engine rule, apply the mutation, and write the billing, DNS,
// history, and poll side effects through the same transactional context.
// Either everything commits or nothing does.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"regcore/internal/registry/billing"
	"regcore/internal/registry/dns"
	"regcore/internal/registry/lifecycle"
	"regcore/internal/registry/metrics"
	"regcore/internal/registry/models"
	"regcore/internal/registry/store"
	id "regcore/pkg/domain"
	dErrors "regcore/pkg/domain-errors"
	"regcore/pkg/platform/retry"
	"regcore/pkg/platform/sentinel"
)

// DomainStore is the slice of the domain store the flows need.
type DomainStore interface {
	Create(ctx context.Context, d *models.Domain) error
	Update(ctx context.Context, d *models.Domain) error
	GetLiveByName(ctx context.Context, name string, now time.Time) (*models.Domain, error)
	GetByRepoID(ctx context.Context, repoID id.RepoID) (*models.Domain, error)
	ExistsLive(ctx context.Context, name string, now time.Time) (bool, error)
}

// HistoryStore records the audit trail.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
}

// PollStore queues and serves registrar notifications.
type PollStore interface {
	Enqueue(ctx context.Context, msg *models.PollMessage) error
	ListByRegistrar(ctx context.Context, registrarID id.RegistrarID, limit int) ([]*models.PollMessage, error)
	Ack(ctx context.Context, msgID id.PollMessageID, registrarID id.RegistrarID) error
}

// CheckCache answers availability checks without touching the store.
type CheckCache interface {
	Get(ctx context.Context, name string) (available bool, ok bool, err error)
	Set(ctx context.Context, name string, available bool) error
	Invalidate(ctx context.Context, name string) error
}

// Service is the command façade over the registry core.
type Service struct {
	txRunner store.Tx
	domains  DomainStore
	billing  *billing.Generator
	dns      *dns.Notifier
	history  HistoryStore
	poll     PollStore

	// readDomains may be backed by a lagging replica; it serves checks only.
	readDomains DomainStore
	cache       CheckCache

	cfg      lifecycle.Config
	retryCfg retry.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLifecycleConfig overrides the TLD policy durations.
func WithLifecycleConfig(cfg lifecycle.Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithRetry overrides the transaction retry bounds.
func WithRetry(cfg retry.Config) Option {
	return func(s *Service) { s.retryCfg = cfg }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches command instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCheckCache attaches the availability cache.
func WithCheckCache(cache CheckCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithReadStore points availability checks at a replica-backed store.
func WithReadStore(domains DomainStore) Option {
	return func(s *Service) { s.readDomains = domains }
}

// NewService wires the command flows.
func NewService(txRunner store.Tx, domains DomainStore, gen *billing.Generator, notifier *dns.Notifier, history HistoryStore, poll PollStore, opts ...Option) *Service {
	s := &Service{
		txRunner:    txRunner,
		domains:     domains,
		billing:     gen,
		dns:         notifier,
		history:     history,
		poll:        poll,
		readDomains: domains,
		cfg:         lifecycle.DefaultConfig(),
		retryCfg:    retry.Config{MaxAttempts: 3, Backoff: 10 * time.Millisecond},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// inTx runs fn as one serializable transaction, retrying the whole
// transaction on transient store failures.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.retryCfg, store.IsTransient, func(ctx context.Context) error {
		return s.txRunner.RunInTx(ctx, fn)
	})
}

// observe logs and instruments one finished command.
func (s *Service) observe(ctx context.Context, command, name string, err error, start time.Time) {
	outcome := "success"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		s.logger.InfoContext(ctx, "command rejected",
			"command", command, "domain", name, "outcome", outcome, "error", err)
	}
	s.metrics.ObserveCommand(command, outcome, time.Since(start))
}

// invalidateCheck drops the availability cache entry after a mutation has
// committed. Failures are logged only; the cache entry expires on its own.
func (s *Service) invalidateCheck(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, name); err != nil {
		s.logger.WarnContext(ctx, "check cache invalidation failed", "domain", name, "error", err)
	}
}

// deniedError converts an engine denial into the coded error transports map
// to protocol responses.
func deniedError(reason string) error {
	switch reason {
	case lifecycle.ReasonNotSponsoringRegistrar:
		return dErrors.New(dErrors.CodeDenied, "registrar does not sponsor this domain")
	case lifecycle.ReasonNotActive:
		return dErrors.New(dErrors.CodeNotFound, "domain does not exist")
	case lifecycle.ReasonTransferToSelf:
		return dErrors.New(dErrors.CodeBadRequest, "domain is already sponsored by the requesting registrar")
	case lifecycle.ReasonNoRedemption:
		return dErrors.New(dErrors.CodeConflict, "domain is not in its redemption window")
	case lifecycle.ReasonSubordinateHosts:
		return dErrors.New(dErrors.CodeConflict, "domain still has subordinate hosts")
	case lifecycle.ReasonPendingDelete:
		return dErrors.New(dErrors.CodeConflict, "domain is pending delete")
	case lifecycle.ReasonTransferAlreadyPending:
		return dErrors.New(dErrors.CodeConflict, "domain already has a pending transfer")
	default:
		return dErrors.New(dErrors.CodeConflict, "operation prohibited by domain status")
	}
}

// storeError translates store sentinels into coded business outcomes.
func storeError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "domain does not exist")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.Wrap(err, dErrors.CodeConflict, "domain name is not available")
	default:
		return err
	}
}

// ruleOn loads the aggregate and lets the engine rule on the operation.
func (s *Service) ruleOn(ctx context.Context, name string, op lifecycle.Op, registrarID id.RegistrarID, superuser bool, now time.Time) (*models.Domain, error) {
	d, err := s.domains.GetLiveByName(ctx, name, now)
	if err != nil {
		return nil, storeError(err)
	}
	decision, err := lifecycle.CanApply(d, op, registrarID, superuser, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, deniedError(decision.Reason)
	}
	return d, nil
}
