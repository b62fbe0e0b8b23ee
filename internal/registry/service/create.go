package service

import (
	"context"
	"time"

	"regcore/internal/registry/models"
	dErrors "regcore/pkg/domain-errors"
	"regcore/pkg/requestcontext"
)

// Create registers a new domain for the authenticated registrar. The name
// check, the insert, the create charge, the open-ended auto-renew
// recurrence, the add grace window, the audit entry, and the DNS refresh
// request all commit together.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*CreateResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	registrarID := requestcontext.RegistrarID(ctx)

	var result *CreateResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		d, err := models.NewDomain(cmd.Name, registrarID, cmd.Years, now)
		if err != nil {
			return err
		}

		exists, err := s.domains.ExistsLive(ctx, d.Name, now)
		if err != nil {
			return err
		}
		if exists {
			return dErrors.New(dErrors.CodeConflict, "domain name is not available")
		}

		createEvent, err := s.billing.ChargeOneTime(ctx, d, models.BillingActionCreate, cmd.Years, now)
		if err != nil {
			return err
		}
		if _, err := s.billing.OpenRecurrence(ctx, d, d.ExpirationTime); err != nil {
			return err
		}
		if err := d.AddGracePeriod(models.GracePeriod{
			Type:           models.GracePeriodAdd,
			ExpirationTime: now.Add(s.cfg.AddGracePeriod),
			RegistrarID:    registrarID,
			BillingEventID: createEvent.ID,
		}, now); err != nil {
			return err
		}

		if err := s.domains.Create(ctx, d); err != nil {
			return storeError(err)
		}
		if err := s.appendHistory(ctx, d, models.HistoryDomainCreate, "", now); err != nil {
			return err
		}
		if err := s.dns.RequestRefresh(ctx, d.Name, now); err != nil {
			return err
		}

		result = &CreateResult{
			Outcome:        succeeded(),
			RepoID:         d.RepoID.String(),
			Name:           d.Name,
			ExpirationTime: d.ExpirationTime,
		}
		return nil
	})
	s.observe(ctx, "domain_create", cmd.Name, err, start)
	if err != nil {
		return nil, err
	}
	s.invalidateCheck(ctx, result.Name)
	return result, nil
}

// appendHistory snapshots the domain into the audit trail under the
// authenticated identity.
func (s *Service) appendHistory(ctx context.Context, d *models.Domain, historyType models.HistoryType, reason string, now time.Time) error {
	entry, err := models.NewHistoryEntry(d, historyType,
		requestcontext.RegistrarID(ctx), requestcontext.Superuser(ctx), reason, now)
	if err != nil {
		return err
	}
	return s.history.Append(ctx, entry)
}
