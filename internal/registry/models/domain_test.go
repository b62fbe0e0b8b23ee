package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "regcore/pkg/domain"
	dErrors "regcore/pkg/domain-errors"
)

var now = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func newTestDomain(t *testing.T) *Domain {
	t.Helper()
	d, err := NewDomain("Example.TEST", id.RegistrarID("registrar-a"), 2, now)
	require.NoError(t, err)
	return d
}

func TestNewDomain(t *testing.T) {
	d := newTestDomain(t)

	assert.Equal(t, "example.test", d.Name, "names are stored lower-cased")
	assert.Equal(t, "test", d.TLD)
	assert.Equal(t, now, d.CreationTime)
	assert.Equal(t, now.AddDate(2, 0, 0), d.ExpirationTime)
	assert.Equal(t, EndOfTime, d.DeletionTime)
	assert.True(t, d.Statuses.Has(StatusInactive))
	assert.Contains(t, d.RepoID.String(), "-TEST")
	require.NoError(t, d.CheckConsistency())
}

func TestNewDomainValidation(t *testing.T) {
	cases := []struct {
		name      string
		domain    string
		registrar id.RegistrarID
		years     int
	}{
		{"no tld", "nodots", "registrar-a", 1},
		{"trailing dot", "example.", "registrar-a", 1},
		{"leading dot", ".test", "registrar-a", 1},
		{"no registrar", "example.test", "", 1},
		{"zero years", "example.test", "registrar-a", 0},
		{"too many years", "example.test", "registrar-a", 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDomain(tc.domain, tc.registrar, tc.years, now)
			require.Error(t, err)
			assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
		})
	}
}

func TestLivenessIsDerived(t *testing.T) {
	d := newTestDomain(t)

	assert.False(t, d.IsActive(now.Add(-time.Second)), "not yet created")
	assert.True(t, d.IsActive(now))
	assert.True(t, d.IsActive(now.AddDate(50, 0, 0)), "expiration does not end liveness")

	d.DeletionTime = now.Add(time.Hour)
	assert.True(t, d.IsActive(now.Add(59*time.Minute)))
	assert.False(t, d.IsActive(now.Add(time.Hour)), "deletion instant itself is dead")
	assert.True(t, d.IsSoftDeleted(now.Add(time.Hour)))
	assert.False(t, d.IsSoftDeleted(now))
}

func TestCheckConsistency(t *testing.T) {
	d := newTestDomain(t)
	require.NoError(t, d.CheckConsistency())

	d.DeletionTime = d.CreationTime.Add(-time.Second)
	err := d.CheckConsistency()
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvariantViolation, dErrors.CodeOf(err))

	d = newTestDomain(t)
	d.Statuses.Add(StatusPendingTransfer)
	err = d.CheckConsistency()
	require.Error(t, err, "pendingTransfer status without transfer data")

	d.PendingTransfer = &TransferData{
		GainingRegistrarID: "registrar-b",
		LosingRegistrarID:  d.RegistrarID,
		RequestTime:        now,
		ExpirationTime:     now.Add(5 * 24 * time.Hour),
	}
	require.NoError(t, d.CheckConsistency())
}

func TestGracePeriodLookupIgnoresExpired(t *testing.T) {
	d := newTestDomain(t)
	require.NoError(t, d.AddGracePeriod(GracePeriod{
		Type:           GracePeriodAdd,
		ExpirationTime: now.Add(5 * 24 * time.Hour),
		RegistrarID:    d.RegistrarID,
	}, now))

	_, ok := d.GracePeriod(GracePeriodAdd, now.Add(24*time.Hour))
	assert.True(t, ok)
	_, ok = d.GracePeriod(GracePeriodAdd, now.Add(6*24*time.Hour))
	assert.False(t, ok)
	_, ok = d.GracePeriod(GracePeriodRenew, now)
	assert.False(t, ok)
}

func TestAddGracePeriodEnforcesCoexistence(t *testing.T) {
	d := newTestDomain(t)
	expiry := now.Add(5 * 24 * time.Hour)
	require.NoError(t, d.AddGracePeriod(GracePeriod{Type: GracePeriodAdd, ExpirationTime: expiry}, now))

	// Duplicate type is always rejected.
	err := d.AddGracePeriod(GracePeriod{Type: GracePeriodAdd, ExpirationTime: expiry}, now)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvariantViolation, dErrors.CodeOf(err))

	// Renew may layer on add; autoRenew may not.
	require.NoError(t, d.AddGracePeriod(GracePeriod{Type: GracePeriodRenew, ExpirationTime: expiry}, now))
	err = d.AddGracePeriod(GracePeriod{Type: GracePeriodAutoRenew, ExpirationTime: expiry}, now)
	require.Error(t, err)

	// An expired window no longer constrains anything.
	d = newTestDomain(t)
	require.NoError(t, d.AddGracePeriod(GracePeriod{Type: GracePeriodAdd, ExpirationTime: now.Add(time.Hour)}, now))
	require.NoError(t, d.AddGracePeriod(GracePeriod{Type: GracePeriodRedemption, ExpirationTime: expiry}, now.Add(2*time.Hour)))
}

func TestRemoveGracePeriods(t *testing.T) {
	d := newTestDomain(t)
	expiry := now.Add(5 * 24 * time.Hour)
	require.NoError(t, d.AddGracePeriod(GracePeriod{Type: GracePeriodAdd, ExpirationTime: expiry}, now))
	require.NoError(t, d.AddGracePeriod(GracePeriod{Type: GracePeriodRenew, ExpirationTime: expiry}, now))

	d.RemoveGracePeriods(GracePeriodAdd)
	require.Len(t, d.GracePeriods, 1)
	assert.Equal(t, GracePeriodRenew, d.GracePeriods[0].Type)
}
