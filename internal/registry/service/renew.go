package service

import (
	"context"
	"time"

	"regcore/internal/registry/lifecycle"
	"regcore/internal/registry/models"
	dErrors "regcore/pkg/domain-errors"
	"regcore/pkg/requestcontext"
)

// maxRegistrationHorizon caps how far into the future an expiration may
// land, measured from the command instant.
const maxRegistrationHorizonYears = 10

// Renew extends a registration from its current expiration. Renewal never
// touches DNS: the zone only changes when the domain enters or leaves it.
func (s *Service) Renew(ctx context.Context, cmd RenewCommand) (*RenewResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	var result *RenewResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		if cmd.Years < 1 || cmd.Years > maxRegistrationHorizonYears {
			return dErrors.New(dErrors.CodeBadRequest, "renewal period must be between 1 and 10 years")
		}

		d, err := s.ruleOn(ctx, cmd.Name, lifecycle.OpRenew,
			requestcontext.RegistrarID(ctx), requestcontext.Superuser(ctx), now)
		if err != nil {
			return err
		}

		if !cmd.CurrentExpiration.IsZero() && !cmd.CurrentExpiration.Equal(d.ExpirationTime) {
			return dErrors.New(dErrors.CodeConflict, "stated expiration does not match current expiration")
		}
		newExpiration := d.ExpirationTime.AddDate(cmd.Years, 0, 0)
		if newExpiration.After(now.AddDate(maxRegistrationHorizonYears, 0, 0)) {
			return dErrors.New(dErrors.CodeBadRequest, "renewal would exceed the maximum registration horizon")
		}

		renewEvent, err := s.billing.ChargeOneTime(ctx, d, models.BillingActionRenew, cmd.Years, now)
		if err != nil {
			return err
		}

		d.GracePeriods = lifecycle.NextGracePeriods(d, lifecycle.OpRenew, now, s.cfg, renewEvent.ID)
		d.ExpirationTime = newExpiration
		d.LastUpdateTime = now

		if err := s.domains.Update(ctx, d); err != nil {
			return storeError(err)
		}
		if err := s.appendHistory(ctx, d, models.HistoryDomainRenew, "", now); err != nil {
			return err
		}

		result = &RenewResult{
			Outcome:        succeeded(),
			Name:           d.Name,
			ExpirationTime: d.ExpirationTime,
		}
		return nil
	})
	s.observe(ctx, "domain_renew", cmd.Name, err, start)
	if err != nil {
		return nil, err
	}
	return result, nil
}
