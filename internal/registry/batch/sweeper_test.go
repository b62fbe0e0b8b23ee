package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regcore/internal/registry/billing"
	"regcore/internal/registry/dns"
	"regcore/internal/registry/lifecycle"
	"regcore/internal/registry/models"
	"regcore/internal/registry/store"
	billingstore "regcore/internal/registry/store/billing"
	"regcore/internal/registry/store/dnsoutbox"
	domainstore "regcore/internal/registry/store/domains"
	historystore "regcore/internal/registry/store/history"
	pollstore "regcore/internal/registry/store/poll"
	id "regcore/pkg/domain"
	"regcore/pkg/requestcontext"
)

var sweepNow = time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)

type sweepEnv struct {
	sweeper *Sweeper
	domains *domainstore.InMemory
	billing *billingstore.InMemory
	history *historystore.InMemory
	poll    *pollstore.InMemory
	outbox  *dnsoutbox.InMemory
}

func newSweepEnv(t *testing.T) *sweepEnv {
	t.Helper()
	env := &sweepEnv{
		domains: domainstore.NewInMemory(),
		billing: billingstore.NewInMemory(),
		history: historystore.NewInMemory(),
		poll:    pollstore.NewInMemory(),
		outbox:  dnsoutbox.NewInMemory(),
	}
	gen := billing.NewGenerator(env.billing, billing.DefaultPricing(), lifecycle.DefaultConfig())
	env.sweeper = NewSweeper(
		store.NewInMemoryTx(), env.domains, gen, dns.NewNotifier(env.outbox),
		env.history, env.poll, env.billing,
	)
	return env
}

func sweepCtx() context.Context {
	return requestcontext.WithTime(context.Background(), sweepNow)
}

// seed inserts a domain with explicit timestamps, bypassing the command
// flows so tests can stage arbitrary lifecycle states.
func (env *sweepEnv) seed(t *testing.T, name string, created, deletion time.Time) *models.Domain {
	t.Helper()
	d, err := models.NewDomain(name, id.RegistrarID("registrar-a"), 1, created)
	require.NoError(t, err)
	d.DeletionTime = deletion
	if !deletion.Equal(models.EndOfTime) && !deletion.After(sweepNow) {
		d.Statuses = models.NewStatusSet()
	}
	require.NoError(t, env.domains.Create(context.Background(), d))
	return d
}

func TestSweepSelection(t *testing.T) {
	env := newSweepEnv(t)

	fresh := env.seed(t, "fresh.probe", sweepNow.Add(-30*time.Minute), models.EndOfTime)
	stale := env.seed(t, "stale.probe", sweepNow.Add(-2*time.Hour), models.EndOfTime)
	recentlyGone := env.seed(t, "recent.probe", sweepNow.Add(-3*time.Hour), sweepNow.Add(-30*time.Minute))
	longGone := env.seed(t, "gone.probe", sweepNow.Add(-4*time.Hour), sweepNow.Add(-3*time.Hour))
	registryOwn := env.seed(t, "nic.probe", sweepNow.Add(-48*time.Hour), models.EndOfTime)
	outOfScope := env.seed(t, "keep.test", sweepNow.Add(-48*time.Hour), models.EndOfTime)

	withHosts := env.seed(t, "parent.probe", sweepNow.Add(-48*time.Hour), models.EndOfTime)
	require.NoError(t, env.domains.AddSubordinateHost(context.Background(), withHosts.RepoID, "ns1.parent.probe"))

	result, err := env.sweeper.Run(sweepCtx(), Params{TLDs: []string{"probe"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SoftDeleted)
	assert.Equal(t, 1, result.HardDeleted)
	assert.Equal(t, 0, result.Defective)

	// The stale live row was soft-deleted.
	got, err := env.domains.GetByRepoID(context.Background(), stale.RepoID)
	require.NoError(t, err)
	assert.Equal(t, sweepNow, got.DeletionTime)
	assert.Empty(t, got.Statuses.Sorted())

	// The long-gone row was reclaimed entirely.
	_, err = env.domains.GetByRepoID(context.Background(), longGone.RepoID)
	require.Error(t, err)

	// Everything else was left alone.
	for _, d := range []*models.Domain{fresh, recentlyGone, registryOwn, outOfScope, withHosts} {
		_, err := env.domains.GetByRepoID(context.Background(), d.RepoID)
		require.NoError(t, err, "domain %s must survive the sweep", d.Name)
	}
	got, err = env.domains.GetByRepoID(context.Background(), fresh.RepoID)
	require.NoError(t, err)
	assert.Equal(t, models.EndOfTime, got.DeletionTime)
}

func TestSweepSoftDeleteSideEffects(t *testing.T) {
	env := newSweepEnv(t)
	d := env.seed(t, "stale.probe", sweepNow.Add(-2*time.Hour), models.EndOfTime)
	gen := billing.NewGenerator(env.billing, billing.DefaultPricing(), lifecycle.DefaultConfig())
	_, err := gen.OpenRecurrence(context.Background(), d, d.ExpirationTime)
	require.NoError(t, err)

	_, err = env.sweeper.Run(sweepCtx(), Params{TLDs: []string{"probe"}})
	require.NoError(t, err)

	// Auto-renew stopped at the sweep instant.
	rec, err := env.billing.GetRecurrence(context.Background(), d.RepoID)
	require.NoError(t, err)
	assert.Equal(t, sweepNow, rec.EndTime)

	// The mutation is in the audit trail as an operator action.
	entries, err := env.history.ListByRepoID(context.Background(), d.RepoID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.HistoryDomainDelete, entries[0].Type)
	assert.True(t, entries[0].BySuperuser)

	// The zone drops the name.
	pending, err := env.outbox.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "stale.probe", pending[0].DomainName)
}

func TestSweepSoftDeleteClearsPendingTransfer(t *testing.T) {
	env := newSweepEnv(t)
	d := env.seed(t, "stale.probe", sweepNow.Add(-2*time.Hour), models.EndOfTime)
	d.Statuses.Add(models.StatusPendingTransfer)
	d.PendingTransfer = &models.TransferData{
		GainingRegistrarID: id.RegistrarID("registrar-b"),
		LosingRegistrarID:  d.RegistrarID,
		RequestTime:        sweepNow.Add(-time.Hour),
		ExpirationTime:     sweepNow.Add(4 * 24 * time.Hour),
	}
	require.NoError(t, env.domains.Update(context.Background(), d))

	result, err := env.sweeper.Run(sweepCtx(), Params{TLDs: []string{"probe"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SoftDeleted)

	// The outstanding request dies with the row; the terminal state must
	// stay internally consistent or the next run would refuse to touch it.
	got, err := env.domains.GetByRepoID(context.Background(), d.RepoID)
	require.NoError(t, err)
	assert.Nil(t, got.PendingTransfer)
	assert.Empty(t, got.Statuses.Sorted())
	require.NoError(t, got.CheckConsistency())

	// Once retention elapses, the next run reclaims the row.
	later := requestcontext.WithTime(context.Background(), sweepNow.Add(2*time.Hour))
	result, err = env.sweeper.Run(later, Params{TLDs: []string{"probe"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.HardDeleted)
	assert.Equal(t, 0, result.Defective)
	_, err = env.domains.GetByRepoID(context.Background(), d.RepoID)
	require.Error(t, err)
}

func TestSweepHardDeleteCascades(t *testing.T) {
	env := newSweepEnv(t)
	d := env.seed(t, "gone.probe", sweepNow.Add(-4*time.Hour), sweepNow.Add(-3*time.Hour))

	gen := billing.NewGenerator(env.billing, billing.DefaultPricing(), lifecycle.DefaultConfig())
	_, err := gen.ChargeOneTime(context.Background(), d, models.BillingActionCreate, 1, d.CreationTime)
	require.NoError(t, err)
	entry, err := models.NewHistoryEntry(d, models.HistoryDomainCreate, d.RegistrarID, false, "", d.CreationTime)
	require.NoError(t, err)
	require.NoError(t, env.history.Append(context.Background(), entry))
	require.NoError(t, env.poll.Enqueue(context.Background(),
		models.NewPollMessage(d.RegistrarID, d.RepoID, "note", d.CreationTime)))

	result, err := env.sweeper.Run(sweepCtx(), Params{TLDs: []string{"probe"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.HardDeleted)

	_, err = env.domains.GetByRepoID(context.Background(), d.RepoID)
	require.Error(t, err)
	events, err := env.billing.ListOneTimes(context.Background(), d.RepoID)
	require.NoError(t, err)
	assert.Empty(t, events)
	entries, err := env.history.ListByRepoID(context.Background(), d.RepoID)
	require.NoError(t, err)
	assert.Empty(t, entries)
	msgs, err := env.poll.ListByRegistrar(context.Background(), d.RegistrarID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSweepDryRunWritesNothing(t *testing.T) {
	env := newSweepEnv(t)
	stale := env.seed(t, "stale.probe", sweepNow.Add(-2*time.Hour), models.EndOfTime)
	gone := env.seed(t, "gone.probe", sweepNow.Add(-4*time.Hour), sweepNow.Add(-3*time.Hour))

	result, err := env.sweeper.Run(sweepCtx(), Params{TLDs: []string{"probe"}, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.WouldSoftDelete)
	assert.Equal(t, 1, result.WouldHardDelete)
	assert.Equal(t, 0, result.SoftDeleted)
	assert.Equal(t, 0, result.HardDeleted)
	assert.Equal(t, 1, result.Batches, "a dry run inspects exactly one batch")

	got, err := env.domains.GetByRepoID(context.Background(), stale.RepoID)
	require.NoError(t, err)
	assert.Equal(t, models.EndOfTime, got.DeletionTime)
	_, err = env.domains.GetByRepoID(context.Background(), gone.RepoID)
	require.NoError(t, err)
}

func TestSweepBatchesUntilDrained(t *testing.T) {
	env := newSweepEnv(t)
	for _, name := range []string{"a.probe", "b.probe", "c.probe"} {
		env.seed(t, name, sweepNow.Add(-2*time.Hour), models.EndOfTime)
	}

	result, err := env.sweeper.Run(sweepCtx(), Params{TLDs: []string{"probe"}, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, result.SoftDeleted)
	assert.GreaterOrEqual(t, result.Batches, 3)
}

func TestSweepSkipsDefectiveRows(t *testing.T) {
	env := newSweepEnv(t)
	d := env.seed(t, "broken.probe", sweepNow.Add(-2*time.Hour), models.EndOfTime)
	d.DeletionTime = d.CreationTime.Add(-time.Hour)
	require.NoError(t, env.domains.Update(context.Background(), d))

	result, err := env.sweeper.Run(sweepCtx(), Params{TLDs: []string{"probe"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Defective)
	assert.Equal(t, 0, result.SoftDeleted)
	assert.Equal(t, 0, result.HardDeleted)

	// The defective row is preserved for manual inspection.
	_, err = env.domains.GetByRepoID(context.Background(), d.RepoID)
	require.NoError(t, err)
}

func TestSweepWindowOverrides(t *testing.T) {
	env := newSweepEnv(t)
	young := env.seed(t, "young.probe", sweepNow.Add(-20*time.Minute), models.EndOfTime)
	gone := env.seed(t, "gone.probe", sweepNow.Add(-40*time.Minute), sweepNow.Add(-15*time.Minute))

	gen := billing.NewGenerator(env.billing, billing.DefaultPricing(), lifecycle.DefaultConfig())
	sweeper := NewSweeper(
		store.NewInMemoryTx(), env.domains, gen, dns.NewNotifier(env.outbox),
		env.history, env.poll, env.billing,
		WithUsedWindow(10*time.Minute),
		WithRetention(10*time.Minute),
	)

	result, err := sweeper.Run(sweepCtx(), Params{TLDs: []string{"probe"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SoftDeleted)
	assert.Equal(t, 1, result.HardDeleted)

	got, err := env.domains.GetByRepoID(context.Background(), young.RepoID)
	require.NoError(t, err)
	assert.Equal(t, sweepNow, got.DeletionTime)
	_, err = env.domains.GetByRepoID(context.Background(), gone.RepoID)
	require.Error(t, err)
}

func TestSweepWithoutScopeIsNoOp(t *testing.T) {
	env := newSweepEnv(t)
	env.seed(t, "stale.probe", sweepNow.Add(-2*time.Hour), models.EndOfTime)

	result, err := env.sweeper.Run(sweepCtx(), Params{})
	require.NoError(t, err)
	assert.Zero(t, result.SoftDeleted)
	assert.Zero(t, result.Batches)
}
