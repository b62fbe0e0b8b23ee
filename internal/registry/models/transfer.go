package models

import (
	"time"

	id "regcore/pkg/domain"
)

// TransferData exists only while a transfer request is outstanding. It is
// cleared when the losing registrar approves or rejects, or when the
// request expires.
type TransferData struct {
	GainingRegistrarID id.RegistrarID
	LosingRegistrarID  id.RegistrarID
	RequestTime        time.Time
	// ExpirationTime is when an unanswered request lapses.
	ExpirationTime time.Time
}
