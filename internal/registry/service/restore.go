package service

import (
	"context"
	"time"

	"regcore/internal/registry/lifecycle"
	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/requestcontext"
)

// Restore recovers a domain from its redemption window. The restore fee is
// final immediately; a domain whose registration has lapsed meanwhile is
// also renewed for one year so it never comes back already expired.
func (s *Service) Restore(ctx context.Context, cmd RestoreCommand) (*RestoreResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	var result *RestoreResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		d, err := s.ruleOn(ctx, cmd.Name, lifecycle.OpRestore,
			requestcontext.RegistrarID(ctx), requestcontext.Superuser(ctx), now)
		if err != nil {
			return err
		}

		if _, err := s.billing.ChargeOneTime(ctx, d, models.BillingActionRestore, 1, now); err != nil {
			return err
		}
		if !d.ExpirationTime.After(now) {
			if _, err := s.billing.ChargeOneTime(ctx, d, models.BillingActionRenew, 1, now); err != nil {
				return err
			}
			d.ExpirationTime = d.ExpirationTime.AddDate(1, 0, 0)
		}
		if _, err := s.billing.OpenRecurrence(ctx, d, d.ExpirationTime); err != nil {
			return err
		}

		d.GracePeriods = lifecycle.NextGracePeriods(d, lifecycle.OpRestore, now, s.cfg, id.BillingEventID{})
		d.DeletionTime = models.EndOfTime
		d.LastUpdateTime = now
		d.Statuses = models.NewStatusSet(models.StatusInactive)

		if err := s.domains.Update(ctx, d); err != nil {
			return storeError(err)
		}
		if err := s.appendHistory(ctx, d, models.HistoryDomainRestore, "", now); err != nil {
			return err
		}
		if err := s.dns.RequestRefresh(ctx, d.Name, now); err != nil {
			return err
		}

		result = &RestoreResult{
			Outcome:        succeeded(),
			Name:           d.Name,
			ExpirationTime: d.ExpirationTime,
		}
		return nil
	})
	s.observe(ctx, "domain_restore", cmd.Name, err, start)
	if err != nil {
		return nil, err
	}
	s.invalidateCheck(ctx, result.Name)
	return result, nil
}
