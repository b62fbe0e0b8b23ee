// Package lifecycle is the pure status and grace-period engine. Both the
// synchronous command flows and the batch reconciliation sweep decide
// every transition through this package, so the two paths cannot drift.
//
// Nothing here mutates state, performs I/O, or blocks: functions take a
// resource and an instant and return either a decision or the set of grace
// periods a transition produces. Business-rule violations come back as
// Denied decisions, never as errors; an error return always means the
// resource itself is malformed and must be excluded from automation.
package lifecycle

import (
	"time"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
)

// Op is a mutation the engine can rule on. Create is absent on purpose:
// creation targets a name with no existing resource, so there is nothing
// to rule on beyond availability.
type Op string

const (
	OpRenew    Op = "renew"
	OpDelete   Op = "delete"
	OpTransfer Op = "transfer"
	OpUpdate   Op = "update"
	OpRestore  Op = "restore"
)

// Reason codes carried by Denied decisions. Transports map these to
// protocol response codes; they are part of the stable surface.
const (
	ReasonNotSponsoringRegistrar = "not_sponsoring_registrar"
	ReasonStatusProhibits        = "status_prohibits_operation"
	ReasonPendingDelete          = "pending_delete"
	ReasonSubordinateHosts       = "subordinate_hosts_present"
	ReasonNoRedemption           = "no_redemption_window"
	ReasonTransferAlreadyPending = "transfer_already_pending"
	ReasonTransferToSelf         = "transfer_to_self"
	ReasonNotActive              = "resource_not_active"
)

// Decision is the outcome of a legality check.
type Decision struct {
	Allowed bool
	// Reason is set on denials only.
	Reason string
}

func allowed() Decision             { return Decision{Allowed: true} }
func denied(reason string) Decision { return Decision{Reason: reason} }

// Config carries the TLD policy durations the engine needs. All windows
// are measured from the instant of the triggering action.
type Config struct {
	AddGracePeriod       time.Duration
	RenewGracePeriod     time.Duration
	AutoRenewGracePeriod time.Duration
	TransferGracePeriod  time.Duration
	// RedemptionPeriod is the restore window after a non-grace delete.
	RedemptionPeriod time.Duration
	// PendingDeleteWindow is the tail after redemption lapses, before the
	// deletion instant, during which nothing can be restored.
	PendingDeleteWindow time.Duration
	// TransferRequestWindow is how long an unanswered transfer request
	// stays open.
	TransferRequestWindow time.Duration
}

// DefaultConfig mirrors common registry policy: five-day action windows,
// a 30-day redemption period, and a five-day pending-delete tail.
func DefaultConfig() Config {
	return Config{
		AddGracePeriod:        5 * 24 * time.Hour,
		RenewGracePeriod:      5 * 24 * time.Hour,
		AutoRenewGracePeriod:  45 * 24 * time.Hour,
		TransferGracePeriod:   5 * 24 * time.Hour,
		RedemptionPeriod:      30 * 24 * time.Hour,
		PendingDeleteWindow:   5 * 24 * time.Hour,
		TransferRequestWindow: 5 * 24 * time.Hour,
	}
}

// IsActive reports whether the resource is live at the instant:
// creationTime <= now < deletionTime. Always derived, never stored.
func IsActive(d *models.Domain, now time.Time) bool {
	return d.IsActive(now)
}

// CanApply rules on one requested operation against current state. Server
// statuses always win over client intent: a superuser bypasses client-set
// prohibitions and the ownership check, never server-set prohibitions.
// The only error return is a malformed resource.
func CanApply(d *models.Domain, op Op, registrarID id.RegistrarID, superuser bool, now time.Time) (Decision, error) {
	if err := d.CheckConsistency(); err != nil {
		return Decision{}, err
	}

	if !superuser && d.RegistrarID != registrarID {
		// The gaining side of a transfer is by definition not the sponsor.
		if op != OpTransfer {
			return denied(ReasonNotSponsoringRegistrar), nil
		}
	}

	if op == OpRestore {
		return canRestore(d, now), nil
	}

	if !d.IsActive(now) {
		return denied(ReasonNotActive), nil
	}
	if d.Statuses.Has(models.StatusPendingDelete) {
		return denied(ReasonPendingDelete), nil
	}
	// An outstanding transfer freezes the resource: every transform
	// command is blocked until the request resolves, so the gaining
	// registrar receives the domain exactly as it stood at request time.
	if d.Statuses.Has(models.StatusPendingTransfer) {
		switch op {
		case OpTransfer:
			return denied(ReasonTransferAlreadyPending), nil
		case OpRenew, OpDelete, OpUpdate:
			return denied(ReasonStatusProhibits), nil
		}
	}
	if prohibition := serverProhibition(op); prohibition != "" && d.Statuses.Has(prohibition) {
		return denied(ReasonStatusProhibits), nil
	}
	if prohibition := clientProhibition(op); prohibition != "" && !superuser && d.Statuses.Has(prohibition) {
		return denied(ReasonStatusProhibits), nil
	}

	switch op {
	case OpDelete:
		if len(d.SubordinateHosts) > 0 {
			return denied(ReasonSubordinateHosts), nil
		}
	case OpTransfer:
		if d.RegistrarID == registrarID {
			return denied(ReasonTransferToSelf), nil
		}
	}
	return allowed(), nil
}

func canRestore(d *models.Domain, now time.Time) Decision {
	if !d.Statuses.Has(models.StatusPendingDelete) {
		return denied(ReasonNoRedemption)
	}
	if _, ok := d.GracePeriod(models.GracePeriodRedemption, now); !ok {
		return denied(ReasonNoRedemption)
	}
	return allowed()
}

func serverProhibition(op Op) models.Status {
	switch op {
	case OpRenew:
		return models.StatusServerRenewProhibited
	case OpDelete:
		return models.StatusServerDeleteProhibited
	case OpTransfer:
		return models.StatusServerTransferProhibited
	case OpUpdate:
		return models.StatusServerUpdateProhibited
	}
	return ""
}

func clientProhibition(op Op) models.Status {
	switch op {
	case OpRenew:
		return models.StatusClientRenewProhibited
	case OpDelete:
		return models.StatusClientDeleteProhibited
	case OpTransfer:
		return models.StatusClientTransferProhibited
	case OpUpdate:
		return models.StatusClientUpdateProhibited
	}
	return ""
}
