package service

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
	"regcore/internal/registry/store/checkcache"
	"regcore/internal/registry/store/dnsoutbox"
	domainstore "regcore/internal/registry/store/domains"
	historystore "regcore/internal/registry/store/history"
	pollstore "regcore/internal/registry/store/poll"
	id "regcore/pkg/domain"
	dErrors "regcore/pkg/domain-errors"
	"regcore/pkg/requestcontext"
)

var t0 = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

const (
	registrarA = id.RegistrarID("registrar-a")
	registrarB = id.RegistrarID("registrar-b")
)

type testEnv struct {
	svc     *Service
	domains *domainstore.InMemory
	billing *billingstore.InMemory
	history *historystore.InMemory
	poll    *pollstore.InMemory
	outbox  *dnsoutbox.InMemory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		domains: domainstore.NewInMemory(),
		billing: billingstore.NewInMemory(),
		history: historystore.NewInMemory(),
		poll:    pollstore.NewInMemory(),
		outbox:  dnsoutbox.NewInMemory(),
	}
	cfg := lifecycle.DefaultConfig()
	gen := billing.NewGenerator(env.billing, billing.DefaultPricing(), cfg)
	env.svc = NewService(
		store.NewInMemoryTx(), env.domains, gen, dns.NewNotifier(env.outbox), env.history, env.poll,
		WithLifecycleConfig(cfg),
		WithCheckCache(checkcache.NewInMemory(time.Minute)),
	)
	return env
}

func as(registrarID id.RegistrarID, at time.Time) context.Context {
	ctx := requestcontext.WithRegistrar(context.Background(), registrarID, false)
	return requestcontext.WithTime(ctx, at)
}

func asSuperuser(registrarID id.RegistrarID, at time.Time) context.Context {
	ctx := requestcontext.WithRegistrar(context.Background(), registrarID, true)
	return requestcontext.WithTime(ctx, at)
}

func mustCreate(t *testing.T, env *testEnv, ctx context.Context, name string, years int) *CreateResult {
	t.Helper()
	res, err := env.svc.Create(ctx, CreateCommand{Name: name, Years: years})
	require.NoError(t, err)
	return res
}

func TestCreateRegistersDomain(t *testing.T) {
	env := newTestEnv(t)
	ctx := as(registrarA, t0)

	res := mustCreate(t, env, ctx, "Example.TEST", 2)
	assert.Equal(t, ResultSuccess, res.Outcome.Code)
	assert.Equal(t, "example.test", res.Name)
	assert.Equal(t, t0.AddDate(2, 0, 0), res.ExpirationTime)

	d, err := env.domains.GetLiveByName(ctx, "example.test", t0)
	require.NoError(t, err)
	assert.Equal(t, registrarA, d.RegistrarID)
	assert.Equal(t, models.EndOfTime, d.DeletionTime)
	assert.True(t, d.Statuses.Has(models.StatusInactive))

	gp, ok := d.GracePeriod(models.GracePeriodAdd, t0.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, t0.Add(5*24*time.Hour), gp.ExpirationTime)
	assert.False(t, gp.BillingEventID.IsNil())

	events, err := env.billing.ListOneTimes(ctx, d.RepoID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.BillingActionCreate, events[0].Action)
	assert.Equal(t, int64(2000), events[0].Cost.Amount)

	rec, err := env.billing.GetRecurrence(ctx, d.RepoID)
	require.NoError(t, err)
	assert.Equal(t, d.ExpirationTime, rec.StartTime)
	assert.False(t, rec.IsClosed())

	entries, err := env.history.ListByRepoID(ctx, d.RepoID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.HistoryDomainCreate, entries[0].Type)

	pending, err := env.outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "example.test", pending[0].DomainName)
}

func TestCreateRejectsTakenName(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	_, err := env.svc.Create(as(registrarB, t0.Add(time.Hour)), CreateCommand{Name: "example.test", Years: 1})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestCreateValidatesInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(as(registrarA, t0), CreateCommand{Name: "nodots", Years: 1})
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))

	_, err = env.svc.Create(as(registrarA, t0), CreateCommand{Name: "example.test", Years: 11})
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func TestCheckReflectsRegistrations(t *testing.T) {
	env := newTestEnv(t)
	ctx := as(registrarA, t0)

	results, err := env.svc.Check(ctx, []string{"free.test", "bad name"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Available)
	assert.False(t, results[1].Available)

	mustCreate(t, env, ctx, "free.test", 1)

	// The mutation invalidated the cached availability.
	results, err = env.svc.Check(ctx, []string{"free.test"})
	require.NoError(t, err)
	assert.False(t, results[0].Available)
	assert.Equal(t, "in use", results[0].Reason)
}

func TestRenewExtendsExpiration(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreate(t, env, as(registrarA, t0), "example.test", 2)

	later := t0.AddDate(0, 6, 0)
	res, err := env.svc.Renew(as(registrarA, later), RenewCommand{
		Name:              "example.test",
		Years:             3,
		CurrentExpiration: created.ExpirationTime,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ExpirationTime.AddDate(3, 0, 0), res.ExpirationTime)

	d, err := env.domains.GetLiveByName(context.Background(), "example.test", later)
	require.NoError(t, err)
	gp, ok := d.GracePeriod(models.GracePeriodRenew, later)
	require.True(t, ok)
	assert.Equal(t, later.Add(5*24*time.Hour), gp.ExpirationTime)
}

func TestRenewTwiceInsideGraceWindow(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	firstAt := t0.AddDate(0, 0, 6)
	_, err := env.svc.Renew(as(registrarA, firstAt), RenewCommand{Name: "example.test", Years: 1})
	require.NoError(t, err)

	// The second renew lands while the first renew window is still open;
	// it supersedes that window instead of stacking a duplicate.
	secondAt := t0.AddDate(0, 0, 7)
	res, err := env.svc.Renew(as(registrarA, secondAt), RenewCommand{Name: "example.test", Years: 1})
	require.NoError(t, err)
	assert.Equal(t, t0.AddDate(3, 0, 0), res.ExpirationTime)

	d, err := env.domains.GetLiveByName(context.Background(), "example.test", secondAt)
	require.NoError(t, err)
	renews := 0
	for _, gp := range d.GracePeriods {
		if gp.Type == models.GracePeriodRenew {
			renews++
		}
	}
	assert.Equal(t, 1, renews, "at most one renew grace period per domain")
	gp, ok := d.GracePeriod(models.GracePeriodRenew, secondAt)
	require.True(t, ok)
	assert.Equal(t, secondAt.Add(5*24*time.Hour), gp.ExpirationTime)
}

func TestRenewDeniedWhileTransferPending(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 2)

	requestAt := t0.Add(20 * 24 * time.Hour)
	_, err := env.svc.RequestTransfer(as(registrarB, requestAt), TransferRequestCommand{Name: "example.test"})
	require.NoError(t, err)

	// The sponsor cannot extend expiration out from under the request.
	_, err = env.svc.Renew(as(registrarA, requestAt.Add(time.Hour)), RenewCommand{Name: "example.test", Years: 1})
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestRenewRejectsStaleExpiration(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 2)

	_, err := env.svc.Renew(as(registrarA, t0.Add(time.Hour)), RenewCommand{
		Name:              "example.test",
		Years:             1,
		CurrentExpiration: t0.AddDate(9, 0, 0),
	})
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestRenewCapsHorizon(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 9)

	_, err := env.svc.Renew(as(registrarA, t0.Add(time.Hour)), RenewCommand{Name: "example.test", Years: 5})
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func TestRenewDeniedForNonSponsor(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 2)

	_, err := env.svc.Renew(as(registrarB, t0.Add(time.Hour)), RenewCommand{Name: "example.test", Years: 1})
	assert.Equal(t, dErrors.CodeDenied, dErrors.CodeOf(err))
}

func TestDeleteInsideAddGraceIsImmediate(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	deleteAt := t0.Add(2 * time.Hour)
	res, err := env.svc.Delete(as(registrarA, deleteAt), DeleteCommand{Name: "example.test"})
	require.NoError(t, err)
	assert.True(t, res.Immediate)
	assert.Equal(t, ResultSuccess, res.Outcome.Code)
	assert.Equal(t, deleteAt, res.DeletionTime)

	// The name is available again at once.
	exists, err := env.domains.ExistsLive(context.Background(), "example.test", deleteAt.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, exists)

	// The create charge was voided and auto-renew stopped.
	repoID := id.RepoID(created.RepoID)
	cancels, err := env.billing.ListCancellations(context.Background(), repoID)
	require.NoError(t, err)
	require.Len(t, cancels, 1)
	rec, err := env.billing.GetRecurrence(context.Background(), repoID)
	require.NoError(t, err)
	assert.True(t, rec.IsClosed())
}

func TestDeleteAfterAddGraceEntersRedemption(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	deleteAt := t0.Add(10 * 24 * time.Hour)
	res, err := env.svc.Delete(as(registrarA, deleteAt), DeleteCommand{Name: "example.test"})
	require.NoError(t, err)
	assert.False(t, res.Immediate)
	assert.Equal(t, ResultSuccessPending, res.Outcome.Code)
	assert.Equal(t, deleteAt.Add(35*24*time.Hour), res.DeletionTime)

	d, err := env.domains.GetByRepoID(context.Background(), id.RepoID(created.RepoID))
	require.NoError(t, err)
	assert.True(t, d.Statuses.Has(models.StatusPendingDelete))
	assert.True(t, d.IsActive(deleteAt.Add(time.Hour)), "still live until the deletion instant")

	gp, ok := d.GracePeriod(models.GracePeriodRedemption, deleteAt.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, deleteAt.Add(30*24*time.Hour), gp.ExpirationTime)

	// No open billable window at delete time, so nothing was cancelled.
	cancels, err := env.billing.ListCancellations(context.Background(), d.RepoID)
	require.NoError(t, err)
	assert.Empty(t, cancels)
}

func TestDeleteDeniedWhileProhibited(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	d, err := env.domains.GetByRepoID(context.Background(), id.RepoID(created.RepoID))
	require.NoError(t, err)
	d.Statuses.Add(models.StatusClientDeleteProhibited)
	require.NoError(t, env.domains.Update(context.Background(), d))

	_, err = env.svc.Delete(as(registrarA, t0.Add(time.Hour)), DeleteCommand{Name: "example.test"})
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))

	// A superuser bypasses client-set prohibitions.
	res, err := env.svc.Delete(asSuperuser(registrarA, t0.Add(2*time.Hour)), DeleteCommand{Name: "example.test"})
	require.NoError(t, err)
	assert.True(t, res.Immediate)
}

func TestRestoreFromRedemption(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	deleteAt := t0.Add(10 * 24 * time.Hour)
	_, err := env.svc.Delete(as(registrarA, deleteAt), DeleteCommand{Name: "example.test"})
	require.NoError(t, err)

	restoreAt := deleteAt.Add(15 * 24 * time.Hour)
	res, err := env.svc.Restore(as(registrarA, restoreAt), RestoreCommand{Name: "example.test"})
	require.NoError(t, err)
	assert.Equal(t, created.ExpirationTime, res.ExpirationTime, "registration had not lapsed")

	repoID := id.RepoID(created.RepoID)
	d, err := env.domains.GetByRepoID(context.Background(), repoID)
	require.NoError(t, err)
	assert.Equal(t, models.EndOfTime, d.DeletionTime)
	assert.False(t, d.Statuses.Has(models.StatusPendingDelete))
	_, ok := d.GracePeriod(models.GracePeriodRedemption, restoreAt)
	assert.False(t, ok)

	// Restore fee charged and the recurrence runs again.
	events, err := env.billing.ListOneTimes(context.Background(), repoID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.BillingActionRestore, events[1].Action)
	rec, err := env.billing.GetRecurrence(context.Background(), repoID)
	require.NoError(t, err)
	assert.False(t, rec.IsClosed())
}

func TestRestoreAfterRedemptionLapsesIsDenied(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	deleteAt := t0.Add(10 * 24 * time.Hour)
	_, err := env.svc.Delete(as(registrarA, deleteAt), DeleteCommand{Name: "example.test"})
	require.NoError(t, err)

	lateRestore := deleteAt.Add(32 * 24 * time.Hour)
	_, err = env.svc.Restore(as(registrarA, lateRestore), RestoreCommand{Name: "example.test"})
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestTransferRequestAndApprove(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreate(t, env, as(registrarA, t0), "example.test", 2)
	repoID := id.RepoID(created.RepoID)

	requestAt := t0.Add(20 * 24 * time.Hour)
	res, err := env.svc.RequestTransfer(as(registrarB, requestAt), TransferRequestCommand{Name: "example.test"})
	require.NoError(t, err)
	assert.Equal(t, ResultSuccessPending, res.Outcome.Code)

	// The losing registrar was notified.
	msgs, err := env.poll.ListByRegistrar(context.Background(), registrarA, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// The frozen domain refuses a second request and a delete.
	_, err = env.svc.RequestTransfer(as(registrarB, requestAt.Add(time.Hour)), TransferRequestCommand{Name: "example.test"})
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
	_, err = env.svc.Delete(as(registrarA, requestAt.Add(time.Hour)), DeleteCommand{Name: "example.test"})
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))

	approveAt := requestAt.Add(24 * time.Hour)
	decision, err := env.svc.DecideTransfer(as(registrarA, approveAt), TransferDecisionCommand{Name: "example.test", Approve: true})
	require.NoError(t, err)
	require.NotNil(t, decision.ExpirationTime)
	assert.Equal(t, created.ExpirationTime.AddDate(1, 0, 0), *decision.ExpirationTime)

	d, err := env.domains.GetByRepoID(context.Background(), repoID)
	require.NoError(t, err)
	assert.Equal(t, registrarB, d.RegistrarID)
	assert.Nil(t, d.PendingTransfer)
	assert.False(t, d.Statuses.Has(models.StatusPendingTransfer))
	_, ok := d.GracePeriod(models.GracePeriodTransfer, approveAt)
	assert.True(t, ok)

	// The gaining registrar pays the transfer fee and owns the recurrence.
	events, err := env.billing.ListOneTimes(context.Background(), repoID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.BillingActionTransfer, events[1].Action)
	assert.Equal(t, registrarB, events[1].RegistrarID)
	rec, err := env.billing.GetRecurrence(context.Background(), repoID)
	require.NoError(t, err)
	assert.Equal(t, registrarB, rec.RegistrarID)

	// The gaining registrar was told about the approval.
	msgs, err = env.poll.ListByRegistrar(context.Background(), registrarB, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestTransferReject(t *testing.T) {
	env := newTestEnv(t)
	created := mustCreate(t, env, as(registrarA, t0), "example.test", 2)

	requestAt := t0.Add(20 * 24 * time.Hour)
	_, err := env.svc.RequestTransfer(as(registrarB, requestAt), TransferRequestCommand{Name: "example.test"})
	require.NoError(t, err)

	// Only the sponsor may answer.
	_, err = env.svc.DecideTransfer(as(registrarB, requestAt.Add(time.Hour)), TransferDecisionCommand{Name: "example.test", Approve: false})
	assert.Equal(t, dErrors.CodeDenied, dErrors.CodeOf(err))

	res, err := env.svc.DecideTransfer(as(registrarA, requestAt.Add(2*time.Hour)), TransferDecisionCommand{Name: "example.test", Approve: false})
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res.Outcome.Code)

	d, err := env.domains.GetByRepoID(context.Background(), id.RepoID(created.RepoID))
	require.NoError(t, err)
	assert.Equal(t, registrarA, d.RegistrarID)
	assert.Nil(t, d.PendingTransfer)
	assert.Equal(t, created.ExpirationTime, d.ExpirationTime, "rejection changes nothing")
}

func TestTransferToSelfIsRejected(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	_, err := env.svc.RequestTransfer(as(registrarA, t0.Add(time.Hour)), TransferRequestCommand{Name: "example.test"})
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func TestPollAckIsScopedToRegistrar(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, as(registrarA, t0), "example.test", 1)

	requestAt := t0.Add(20 * 24 * time.Hour)
	_, err := env.svc.RequestTransfer(as(registrarB, requestAt), TransferRequestCommand{Name: "example.test"})
	require.NoError(t, err)

	msgs, err := env.svc.PollMessages(as(registrarA, requestAt), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// The wrong registrar cannot acknowledge it.
	err = env.svc.AckPollMessage(as(registrarB, requestAt), msgs[0].ID.String())
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))

	require.NoError(t, env.svc.AckPollMessage(as(registrarA, requestAt), msgs[0].ID.String()))
	msgs, err = env.svc.PollMessages(as(registrarA, requestAt), 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
