// Package billing turns lifecycle actions into ledger events. The
// generator owns pricing and grace-window timing; persistence stays in the
// billing store, so every write here happens inside the caller's
// transaction.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"regcore/internal/registry/lifecycle"
	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/platform/sentinel"
)

// Store is the slice of the billing store the generator needs.
type Store interface {
	CreateOneTime(ctx context.Context, ev *models.OneTimeEvent) error
	UpsertRecurrence(ctx context.Context, ev *models.RecurrenceEvent) error
	GetRecurrence(ctx context.Context, repoID id.RepoID) (*models.RecurrenceEvent, error)
	CreateCancellationIfAbsent(ctx context.Context, ev *models.CancellationEvent) (bool, error)
}

// Pricing carries the per-action prices for one TLD. All prices share a
// currency; per-year prices scale with the registration period.
type Pricing struct {
	CreatePerYear models.Money
	RenewPerYear  models.Money
	Transfer      models.Money
	Restore       models.Money
}

// DefaultPricing is a placeholder schedule for development setups.
func DefaultPricing() Pricing {
	return Pricing{
		CreatePerYear: models.Money{Amount: 1000, Currency: "USD"},
		RenewPerYear:  models.Money{Amount: 1000, Currency: "USD"},
		Transfer:      models.Money{Amount: 1000, Currency: "USD"},
		Restore:       models.Money{Amount: 5000, Currency: "USD"},
	}
}

// Generator creates billing events for lifecycle actions.
type Generator struct {
	store   Store
	pricing Pricing
	cfg     lifecycle.Config
}

// NewGenerator constructs a generator over the given store and policy.
func NewGenerator(store Store, pricing Pricing, cfg lifecycle.Config) *Generator {
	return &Generator{store: store, pricing: pricing, cfg: cfg}
}

// ChargeOneTime records the charge for one action. The billing time is the
// end of the action's grace window: cancelling the event before then voids
// the charge, after then it is final.
func (g *Generator) ChargeOneTime(ctx context.Context, d *models.Domain, action models.BillingAction, years int, now time.Time) (*models.OneTimeEvent, error) {
	ev := &models.OneTimeEvent{
		ID:          id.NewBillingEventID(),
		RepoID:      d.RepoID,
		RegistrarID: d.RegistrarID,
		Action:      action,
		Cost:        g.cost(action, years),
		Years:       years,
		EventTime:   now,
		BillingTime: now.Add(g.graceWindow(action)),
	}
	if err := g.store.CreateOneTime(ctx, ev); err != nil {
		return nil, fmt.Errorf("charge %s: %w", action, err)
	}
	return ev, nil
}

// OpenRecurrence starts (or re-opens) the auto-renew recurrence for a
// domain. The recurrence begins accruing at the domain's expiration and
// runs to the end of time until the domain is deleted.
func (g *Generator) OpenRecurrence(ctx context.Context, d *models.Domain, start time.Time) (*models.RecurrenceEvent, error) {
	ev := &models.RecurrenceEvent{
		ID:          id.NewBillingEventID(),
		RepoID:      d.RepoID,
		RegistrarID: d.RegistrarID,
		StartTime:   start,
		EndTime:     models.EndOfTime,
	}
	if err := g.store.UpsertRecurrence(ctx, ev); err != nil {
		return nil, fmt.Errorf("open recurrence: %w", err)
	}
	return ev, nil
}

// CloseRecurrence stops the auto-renew recurrence at the given instant.
// A missing recurrence is tolerated so repair paths can call this blindly;
// a recurrence already closed at or before the instant is left alone.
func (g *Generator) CloseRecurrence(ctx context.Context, repoID id.RepoID, at time.Time) error {
	rec, err := g.store.GetRecurrence(ctx, repoID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("close recurrence: %w", err)
	}
	if !rec.EndTime.After(at) {
		return nil
	}
	rec.EndTime = at
	if err := g.store.UpsertRecurrence(ctx, rec); err != nil {
		return fmt.Errorf("close recurrence: %w", err)
	}
	return nil
}

// Cancel negates a prior billable event. Replays are no-ops: the ledger
// admits at most one cancellation per event.
func (g *Generator) Cancel(ctx context.Context, d *models.Domain, eventID id.BillingEventID, reason string, now time.Time) error {
	if eventID.IsNil() {
		return nil
	}
	ev := &models.CancellationEvent{
		ID:               id.NewBillingEventID(),
		RepoID:           d.RepoID,
		RegistrarID:      d.RegistrarID,
		CancelledEventID: eventID,
		EventTime:        now,
		Reason:           reason,
	}
	if _, err := g.store.CreateCancellationIfAbsent(ctx, ev); err != nil {
		return fmt.Errorf("cancel billing event: %w", err)
	}
	return nil
}

func (g *Generator) cost(action models.BillingAction, years int) models.Money {
	switch action {
	case models.BillingActionCreate:
		return g.pricing.CreatePerYear.Mul(years)
	case models.BillingActionRenew:
		return g.pricing.RenewPerYear.Mul(years)
	case models.BillingActionTransfer:
		return g.pricing.Transfer
	case models.BillingActionRestore:
		return g.pricing.Restore
	}
	return models.Money{Currency: g.pricing.CreatePerYear.Currency}
}

func (g *Generator) graceWindow(action models.BillingAction) time.Duration {
	switch action {
	case models.BillingActionCreate:
		return g.cfg.AddGracePeriod
	case models.BillingActionRenew:
		return g.cfg.RenewGracePeriod
	case models.BillingActionTransfer:
		return g.cfg.TransferGracePeriod
	}
	// Restore charges are final immediately; there is no restore grace.
	return 0
}
