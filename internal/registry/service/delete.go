package service

import (
	"context"
	"time"

	"regcore/internal/registry/lifecycle"
	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/requestcontext"
)

// Delete removes a domain from service. Inside the add grace period the
// delete is immediate and the create charge is voided in full; afterwards
// the domain parks in pending delete with a redemption window and only
// soft-deletes once redemption plus the pending-delete tail has elapsed.
func (s *Service) Delete(ctx context.Context, cmd DeleteCommand) (*DeleteResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	var result *DeleteResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		d, err := s.ruleOn(ctx, cmd.Name, lifecycle.OpDelete,
			requestcontext.RegistrarID(ctx), requestcontext.Superuser(ctx), now)
		if err != nil {
			return err
		}

		plan := lifecycle.PlanDelete(d, now, s.cfg)
		for _, eventID := range plan.CancelBillingEvents {
			if err := s.billing.Cancel(ctx, d, eventID, "domain deleted inside grace window", now); err != nil {
				return err
			}
		}
		// Auto-renewal stops accruing the moment deletion is requested,
		// even though the row may linger through redemption.
		if err := s.billing.CloseRecurrence(ctx, d.RepoID, now); err != nil {
			return err
		}

		d.GracePeriods = lifecycle.NextGracePeriods(d, lifecycle.OpDelete, now, s.cfg, id.BillingEventID{})
		d.DeletionTime = plan.NewDeletionTime
		d.LastUpdateTime = now
		if plan.Immediate {
			d.Statuses = models.NewStatusSet()
		} else {
			d.Statuses = models.NewStatusSet(models.StatusInactive, models.StatusPendingDelete)
		}

		if err := s.domains.Update(ctx, d); err != nil {
			return storeError(err)
		}
		if err := s.appendHistory(ctx, d, models.HistoryDomainDelete, "", now); err != nil {
			return err
		}
		if err := s.dns.RequestRefresh(ctx, d.Name, now); err != nil {
			return err
		}

		outcome := pendingAction()
		if plan.Immediate {
			outcome = succeeded()
		}
		result = &DeleteResult{
			Outcome:      outcome,
			Name:         d.Name,
			Immediate:    plan.Immediate,
			DeletionTime: d.DeletionTime,
		}
		return nil
	})
	s.observe(ctx, "domain_delete", cmd.Name, err, start)
	if err != nil {
		return nil, err
	}
	s.invalidateCheck(ctx, result.Name)
	return result, nil
}
