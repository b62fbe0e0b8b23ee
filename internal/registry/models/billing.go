package models

import (
	"time"

	id "regcore/pkg/domain"
)

// BillingAction names the chargeable action behind a one-time event.
type BillingAction string

const (
	BillingActionCreate   BillingAction = "create"
	BillingActionRenew    BillingAction = "renew"
	BillingActionTransfer BillingAction = "transfer"
	BillingActionRestore  BillingAction = "restore"
)

// Money is an amount in minor units of a currency. Billing never does
// arithmetic beyond multiplication by whole years, so integer minor units
// are exact.
type Money struct {
	Amount   int64
	Currency string
}

// Mul scales the amount by a whole factor.
func (m Money) Mul(factor int) Money {
	return Money{Amount: m.Amount * int64(factor), Currency: m.Currency}
}

// OneTimeEvent records a single chargeable action. Billing history is
// append-only: events are never updated in place, only negated by a
// cancellation.
type OneTimeEvent struct {
	ID          id.BillingEventID
	RepoID      id.RepoID
	RegistrarID id.RegistrarID
	Action      BillingAction
	Cost        Money
	Years       int
	// EventTime is when the action happened; BillingTime is when the
	// charge becomes final (the end of its grace window).
	EventTime   time.Time
	BillingTime time.Time
}

// RecurrenceEvent is the open-ended yearly auto-renew charge for a domain.
// EndTime is EndOfTime while the domain lives and is closed to the deletion
// instant when it goes away. There is at most one recurrence per domain.
type RecurrenceEvent struct {
	ID          id.BillingEventID
	RepoID      id.RepoID
	RegistrarID id.RegistrarID
	StartTime   time.Time
	EndTime     time.Time
}

// IsClosed reports whether the recurrence has stopped accruing.
func (r *RecurrenceEvent) IsClosed() bool {
	return r.EndTime.Before(EndOfTime)
}

// CancellationEvent negates exactly one prior event. The negated event id
// is unique per cancellation, which is what makes Cancel idempotent: a
// second cancellation of the same event cannot be recorded.
type CancellationEvent struct {
	ID               id.BillingEventID
	RepoID           id.RepoID
	RegistrarID      id.RegistrarID
	CancelledEventID id.BillingEventID
	EventTime        time.Time
	Reason           string
}
