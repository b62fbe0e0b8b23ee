package models

import (
	"time"

	id "regcore/pkg/domain"
)

// PollMessage is an asynchronous notification queued for a registrar, to be
// consumed and acknowledged out-of-band. Acknowledging removes the row;
// unacknowledged rows for a resource disappear with its hard delete.
type PollMessage struct {
	ID          id.PollMessageID
	RegistrarID id.RegistrarID
	RepoID      id.RepoID
	EventTime   time.Time
	Message     string
}

// NewPollMessage queues a notification about a domain for a registrar.
func NewPollMessage(registrarID id.RegistrarID, repoID id.RepoID, message string, now time.Time) *PollMessage {
	return &PollMessage{
		ID:          id.NewPollMessageID(),
		RegistrarID: registrarID,
		RepoID:      repoID,
		EventTime:   now,
		Message:     message,
	}
}
