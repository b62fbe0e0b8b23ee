package service

import (
	"context"
	"errors"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	dErrors "regcore/pkg/domain-errors"
	"regcore/pkg/platform/sentinel"
	"regcore/pkg/requestcontext"
)

const defaultPollLimit = 100

// PollMessages lists the pending notifications of the authenticated
// registrar, oldest first.
func (s *Service) PollMessages(ctx context.Context, limit int) ([]*models.PollMessage, error) {
	registrarID := requestcontext.RegistrarID(ctx)
	if registrarID.IsZero() {
		return nil, dErrors.New(dErrors.CodeDenied, "no authenticated registrar")
	}
	if limit <= 0 || limit > defaultPollLimit {
		limit = defaultPollLimit
	}
	return s.poll.ListByRegistrar(ctx, registrarID, limit)
}

// AckPollMessage acknowledges one notification, removing it from the
// queue. Only the addressed registrar can acknowledge a message.
func (s *Service) AckPollMessage(ctx context.Context, rawID string) error {
	registrarID := requestcontext.RegistrarID(ctx)
	if registrarID.IsZero() {
		return dErrors.New(dErrors.CodeDenied, "no authenticated registrar")
	}
	msgID, err := id.ParsePollMessageID(rawID)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "malformed poll message id")
	}
	if err := s.poll.Ack(ctx, msgID, registrarID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "poll message does not exist")
		}
		return err
	}
	return nil
}
