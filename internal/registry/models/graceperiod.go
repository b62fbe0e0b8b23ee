package models

import (
	"time"

	id "regcore/pkg/domain"
)

// GracePeriodType names the window after an action during which its billing
// effect can still be reversed.
type GracePeriodType string

const (
	// GracePeriodAdd follows a create. Deleting inside it removes the
	// domain immediately and fully cancels the create charge.
	GracePeriodAdd GracePeriodType = "add"

	// GracePeriodRenew follows an explicit renew.
	GracePeriodRenew GracePeriodType = "renew"

	// GracePeriodAutoRenew follows an automatic yearly renewal.
	GracePeriodAutoRenew GracePeriodType = "autoRenew"

	// GracePeriodTransfer follows an approved transfer.
	GracePeriodTransfer GracePeriodType = "transfer"

	// GracePeriodRedemption follows a non-grace delete; while it is open
	// the registrant can still restore the domain. It always co-occurs
	// with StatusPendingDelete and with nothing else.
	GracePeriodRedemption GracePeriodType = "redemption"
)

// GracePeriod is one live reversal window on a domain. Billable types carry
// a reference to the billing event a delete inside the window would cancel;
// redemption has no such event and the reference stays nil.
type GracePeriod struct {
	Type           GracePeriodType
	ExpirationTime time.Time
	RegistrarID    id.RegistrarID
	BillingEventID id.BillingEventID
}

// coexistence is the full co-occurrence matrix for grace period types.
// Only pairs listed here may be live on one domain at the same time; the
// relation is symmetric and maintained in both directions below.
//
//	             add  renew  autoRenew  transfer  redemption
//	add           -    yes      no         no         no
//	renew        yes    -       no        yes         no
//	autoRenew    no    no        -        yes         no
//	transfer     no    yes     yes         -          no
//	redemption   no    no       no         no         -
//
// Rationale: a renew during the add window layers a second reversible
// charge on the first; a renew replaces (never joins) an auto-renew since
// both extend the same expiration; transfers may land during either renew
// window; redemption coexists with nothing because a pending-delete domain
// admits no other billable action.
var coexistence = map[GracePeriodType]map[GracePeriodType]bool{
	GracePeriodAdd:       {GracePeriodRenew: true},
	GracePeriodRenew:     {GracePeriodAdd: true, GracePeriodTransfer: true},
	GracePeriodAutoRenew: {GracePeriodTransfer: true},
	GracePeriodTransfer:  {GracePeriodRenew: true, GracePeriodAutoRenew: true},
	GracePeriodRedemption: {},
}

// CanCoexist reports whether two distinct grace period types may be live on
// the same domain simultaneously.
func CanCoexist(a, b GracePeriodType) bool {
	if a == b {
		return false
	}
	return coexistence[a][b]
}

// GracePeriodTypes lists every known type, for exhaustive tests and
// persistence validation.
func GracePeriodTypes() []GracePeriodType {
	return []GracePeriodType{
		GracePeriodAdd,
		GracePeriodRenew,
		GracePeriodAutoRenew,
		GracePeriodTransfer,
		GracePeriodRedemption,
	}
}
