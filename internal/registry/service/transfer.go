package service

import (
	"context"
	"fmt"
	"time"

	"regcore/internal/registry/lifecycle"
	"regcore/internal/registry/models"
	dErrors "regcore/pkg/domain-errors"
	"regcore/pkg/requestcontext"
)

// RequestTransfer opens a transfer of the domain to the authenticated
// registrar. The request freezes the resource until the losing registrar
// answers or the request window lapses.
func (s *Service) RequestTransfer(ctx context.Context, cmd TransferRequestCommand) (*TransferResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	gaining := requestcontext.RegistrarID(ctx)

	var result *TransferResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		d, err := s.ruleOn(ctx, cmd.Name, lifecycle.OpTransfer,
			gaining, requestcontext.Superuser(ctx), now)
		if err != nil {
			return err
		}

		d.PendingTransfer = &models.TransferData{
			GainingRegistrarID: gaining,
			LosingRegistrarID:  d.RegistrarID,
			RequestTime:        now,
			ExpirationTime:     now.Add(s.cfg.TransferRequestWindow),
		}
		d.Statuses.Add(models.StatusPendingTransfer)
		d.LastUpdateTime = now

		if err := s.domains.Update(ctx, d); err != nil {
			return storeError(err)
		}
		if err := s.appendHistory(ctx, d, models.HistoryDomainTransferRequest, "", now); err != nil {
			return err
		}
		msg := fmt.Sprintf("Transfer of %s requested by %s", d.Name, gaining)
		if err := s.poll.Enqueue(ctx, models.NewPollMessage(d.RegistrarID, d.RepoID, msg, now)); err != nil {
			return err
		}

		result = &TransferResult{
			Outcome:            pendingAction(),
			Name:               d.Name,
			GainingRegistrarID: gaining.String(),
			LosingRegistrarID:  d.RegistrarID.String(),
		}
		return nil
	})
	s.observe(ctx, "domain_transfer_request", cmd.Name, err, start)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DecideTransfer answers a pending transfer request as the sponsoring
// registrar. Approval moves sponsorship, adds a year to the registration,
// charges the gaining registrar, and re-homes the auto-renew recurrence;
// rejection simply unfreezes the domain.
func (s *Service) DecideTransfer(ctx context.Context, cmd TransferDecisionCommand) (*TransferResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	registrarID := requestcontext.RegistrarID(ctx)
	superuser := requestcontext.Superuser(ctx)

	command := "domain_transfer_reject"
	if cmd.Approve {
		command = "domain_transfer_approve"
	}

	var result *TransferResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		d, err := s.domains.GetLiveByName(ctx, cmd.Name, now)
		if err != nil {
			return storeError(err)
		}
		if err := d.CheckConsistency(); err != nil {
			return err
		}
		if d.PendingTransfer == nil {
			return dErrors.New(dErrors.CodeConflict, "domain has no pending transfer")
		}
		if !superuser && d.RegistrarID != registrarID {
			return dErrors.New(dErrors.CodeDenied, "only the sponsoring registrar may answer a transfer request")
		}

		if cmd.Approve {
			return s.approveTransfer(ctx, d, now, &result)
		}
		return s.rejectTransfer(ctx, d, now, &result)
	})
	s.observe(ctx, command, cmd.Name, err, start)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) approveTransfer(ctx context.Context, d *models.Domain, now time.Time, result **TransferResult) error {
	gaining := d.PendingTransfer.GainingRegistrarID
	losing := d.PendingTransfer.LosingRegistrarID

	// Open billable windows belong to the losing registrar; their charges
	// must not follow the domain to its new sponsor.
	for _, gp := range d.GracePeriods {
		if now.Before(gp.ExpirationTime) && !gp.BillingEventID.IsNil() {
			if err := s.billing.Cancel(ctx, d, gp.BillingEventID, "domain transferred", now); err != nil {
				return err
			}
		}
	}

	d.RegistrarID = gaining
	d.PendingTransfer = nil
	d.Statuses.Remove(models.StatusPendingTransfer)
	d.ExpirationTime = d.ExpirationTime.AddDate(1, 0, 0)
	d.LastUpdateTime = now

	transferEvent, err := s.billing.ChargeOneTime(ctx, d, models.BillingActionTransfer, 1, now)
	if err != nil {
		return err
	}
	if _, err := s.billing.OpenRecurrence(ctx, d, d.ExpirationTime); err != nil {
		return err
	}
	d.GracePeriods = lifecycle.NextGracePeriods(d, lifecycle.OpTransfer, now, s.cfg, transferEvent.ID)

	if err := s.domains.Update(ctx, d); err != nil {
		return storeError(err)
	}
	if err := s.appendHistory(ctx, d, models.HistoryDomainTransferApprove, "", now); err != nil {
		return err
	}
	msg := fmt.Sprintf("Transfer of %s approved by %s", d.Name, losing)
	if err := s.poll.Enqueue(ctx, models.NewPollMessage(gaining, d.RepoID, msg, now)); err != nil {
		return err
	}

	expiration := d.ExpirationTime
	*result = &TransferResult{
		Outcome:            succeeded(),
		Name:               d.Name,
		GainingRegistrarID: gaining.String(),
		LosingRegistrarID:  losing.String(),
		ExpirationTime:     &expiration,
	}
	return nil
}

func (s *Service) rejectTransfer(ctx context.Context, d *models.Domain, now time.Time, result **TransferResult) error {
	gaining := d.PendingTransfer.GainingRegistrarID
	losing := d.PendingTransfer.LosingRegistrarID

	d.PendingTransfer = nil
	d.Statuses.Remove(models.StatusPendingTransfer)
	d.LastUpdateTime = now

	if err := s.domains.Update(ctx, d); err != nil {
		return storeError(err)
	}
	if err := s.appendHistory(ctx, d, models.HistoryDomainTransferReject, "", now); err != nil {
		return err
	}
	msg := fmt.Sprintf("Transfer of %s rejected by %s", d.Name, losing)
	if err := s.poll.Enqueue(ctx, models.NewPollMessage(gaining, d.RepoID, msg, now)); err != nil {
		return err
	}

	*result = &TransferResult{
		Outcome:            succeeded(),
		Name:               d.Name,
		GainingRegistrarID: gaining.String(),
		LosingRegistrarID:  losing.String(),
	}
	return nil
}
