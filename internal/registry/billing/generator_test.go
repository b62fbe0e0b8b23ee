package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regcore/internal/registry/lifecycle"
	"regcore/internal/registry/models"
	billingstore "regcore/internal/registry/store/billing"
	id "regcore/pkg/domain"
)

func testDomain(t *testing.T) *models.Domain {
	t.Helper()
	d, err := models.NewDomain("example.test", id.RegistrarID("registrar-a"), 2, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return d
}

func TestChargeOneTimeBillingTimes(t *testing.T) {
	ctx := context.Background()
	store := billingstore.NewInMemory()
	gen := NewGenerator(store, DefaultPricing(), lifecycle.DefaultConfig())
	d := testDomain(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	create, err := gen.ChargeOneTime(ctx, d, models.BillingActionCreate, 2, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), create.Cost.Amount)
	assert.Equal(t, now.Add(5*24*time.Hour), create.BillingTime)

	restore, err := gen.ChargeOneTime(ctx, d, models.BillingActionRestore, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), restore.Cost.Amount)
	assert.Equal(t, now, restore.BillingTime, "restore charges are final immediately")

	events, err := store.ListOneTimes(ctx, d.RepoID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRecurrenceOpenAndClose(t *testing.T) {
	ctx := context.Background()
	store := billingstore.NewInMemory()
	gen := NewGenerator(store, DefaultPricing(), lifecycle.DefaultConfig())
	d := testDomain(t)

	_, err := gen.OpenRecurrence(ctx, d, d.ExpirationTime)
	require.NoError(t, err)

	rec, err := store.GetRecurrence(ctx, d.RepoID)
	require.NoError(t, err)
	assert.Equal(t, models.EndOfTime, rec.EndTime)
	assert.False(t, rec.IsClosed())

	at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, gen.CloseRecurrence(ctx, d.RepoID, at))

	rec, err = store.GetRecurrence(ctx, d.RepoID)
	require.NoError(t, err)
	assert.Equal(t, at, rec.EndTime)
	assert.True(t, rec.IsClosed())

	// Closing again at a later instant must not move the end time forward.
	require.NoError(t, gen.CloseRecurrence(ctx, d.RepoID, at.Add(24*time.Hour)))
	rec, err = store.GetRecurrence(ctx, d.RepoID)
	require.NoError(t, err)
	assert.Equal(t, at, rec.EndTime)
}

func TestCloseRecurrenceMissingIsNoOp(t *testing.T) {
	ctx := context.Background()
	gen := NewGenerator(billingstore.NewInMemory(), DefaultPricing(), lifecycle.DefaultConfig())
	require.NoError(t, gen.CloseRecurrence(ctx, id.RepoID("ABCDEF12-TEST"), time.Now().UTC()))
}

func TestCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := billingstore.NewInMemory()
	gen := NewGenerator(store, DefaultPricing(), lifecycle.DefaultConfig())
	d := testDomain(t)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	ev, err := gen.ChargeOneTime(ctx, d, models.BillingActionCreate, 1, now)
	require.NoError(t, err)

	require.NoError(t, gen.Cancel(ctx, d, ev.ID, "deleted in add grace", now))
	require.NoError(t, gen.Cancel(ctx, d, ev.ID, "deleted in add grace", now.Add(time.Minute)))

	cancels, err := store.ListCancellations(ctx, d.RepoID)
	require.NoError(t, err)
	require.Len(t, cancels, 1)
	assert.Equal(t, ev.ID, cancels[0].CancelledEventID)
}

func TestCancelNilEventIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := billingstore.NewInMemory()
	gen := NewGenerator(store, DefaultPricing(), lifecycle.DefaultConfig())
	d := testDomain(t)

	require.NoError(t, gen.Cancel(ctx, d, id.BillingEventID{}, "", time.Now().UTC()))

	cancels, err := store.ListCancellations(ctx, d.RepoID)
	require.NoError(t, err)
	assert.Empty(t, cancels)
}
