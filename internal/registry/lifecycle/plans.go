package lifecycle

import (
	"time"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
)

// DeletePlan describes how a legal delete must be applied. Which shape it
// takes depends entirely on whether the add grace window is still open at
// the deletion instant.
type DeletePlan struct {
	// Immediate means the domain leaves the live set at once: the create
	// charge is cancelled in full and no redemption window is offered.
	Immediate bool
	// NewDeletionTime is the value to write into the resource.
	NewDeletionTime time.Time
	// CancelBillingEvents lists the one-time events whose grace windows
	// are still open and must be negated atomically with this delete.
	CancelBillingEvents []id.BillingEventID
	// RedemptionExpiration is set on the non-immediate path.
	RedemptionExpiration time.Time
}

// PlanDelete computes the delete transition for a domain already cleared
// by CanApply. A delete inside the add grace period cancels everything and
// removes the domain now; a later delete parks it in pending delete with a
// redemption window, and the row only soft-deletes once the full
// redemption plus pending-delete tail has elapsed.
func PlanDelete(d *models.Domain, now time.Time, cfg Config) DeletePlan {
	var cancels []id.BillingEventID
	for _, gp := range d.GracePeriods {
		if !now.Before(gp.ExpirationTime) || gp.BillingEventID.IsNil() {
			continue
		}
		// Every open billable window dies with the domain; its charge
		// must not outlive the thing it paid for.
		cancels = append(cancels, gp.BillingEventID)
	}

	if _, open := d.GracePeriod(models.GracePeriodAdd, now); open {
		return DeletePlan{
			Immediate:           true,
			NewDeletionTime:     now,
			CancelBillingEvents: cancels,
		}
	}
	return DeletePlan{
		NewDeletionTime:      now.Add(cfg.RedemptionPeriod + cfg.PendingDeleteWindow),
		CancelBillingEvents:  cancels,
		RedemptionExpiration: now.Add(cfg.RedemptionPeriod),
	}
}

// NextGracePeriods computes the grace-period set a legal operation leaves
// on the resource. billingEventID references the one-time event the new
// window would cancel; ops that create no billable window ignore it.
func NextGracePeriods(d *models.Domain, op Op, now time.Time, cfg Config, billingEventID id.BillingEventID) []models.GracePeriod {
	live := liveGracePeriods(d, now)

	switch op {
	case OpRenew:
		// A renew supersedes any auto-renew window and any earlier renew
		// window: each type appears at most once, and only the latest
		// renewal's charge stays reversible.
		live = dropType(live, models.GracePeriodAutoRenew)
		live = dropType(live, models.GracePeriodRenew)
		live = append(live, models.GracePeriod{
			Type:           models.GracePeriodRenew,
			ExpirationTime: now.Add(cfg.RenewGracePeriod),
			RegistrarID:    d.RegistrarID,
			BillingEventID: billingEventID,
		})
	case OpDelete:
		if _, open := d.GracePeriod(models.GracePeriodAdd, now); open {
			// Immediate cancellation: the add window is consumed, not
			// replaced, and nothing survives it.
			return nil
		}
		return []models.GracePeriod{{
			Type:           models.GracePeriodRedemption,
			ExpirationTime: now.Add(cfg.RedemptionPeriod),
			RegistrarID:    d.RegistrarID,
		}}
	case OpTransfer:
		// On approval the domain changes hands; prior windows belong to
		// the losing registrar and are cancelled by the approval flow.
		return []models.GracePeriod{{
			Type:           models.GracePeriodTransfer,
			ExpirationTime: now.Add(cfg.TransferGracePeriod),
			RegistrarID:    d.RegistrarID,
			BillingEventID: billingEventID,
		}}
	case OpRestore:
		return dropType(live, models.GracePeriodRedemption)
	}
	return live
}

// AutoRenewGracePeriod builds the window that follows an automatic yearly
// renewal of the recurrence.
func AutoRenewGracePeriod(d *models.Domain, now time.Time, cfg Config, recurrenceID id.BillingEventID) models.GracePeriod {
	return models.GracePeriod{
		Type:           models.GracePeriodAutoRenew,
		ExpirationTime: now.Add(cfg.AutoRenewGracePeriod),
		RegistrarID:    d.RegistrarID,
		BillingEventID: recurrenceID,
	}
}

func liveGracePeriods(d *models.Domain, now time.Time) []models.GracePeriod {
	var live []models.GracePeriod
	for _, gp := range d.GracePeriods {
		if now.Before(gp.ExpirationTime) {
			live = append(live, gp)
		}
	}
	return live
}

func dropType(gps []models.GracePeriod, t models.GracePeriodType) []models.GracePeriod {
	kept := gps[:0]
	for _, gp := range gps {
		if gp.Type != t {
			kept = append(kept, gp)
		}
	}
	return kept
}
