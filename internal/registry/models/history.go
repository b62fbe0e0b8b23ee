package models

import (
	"encoding/json"
	"time"

	id "regcore/pkg/domain"
)

// HistoryType tags what kind of mutation a history entry records.
type HistoryType string

const (
	HistoryDomainCreate          HistoryType = "DOMAIN_CREATE"
	HistoryDomainRenew           HistoryType = "DOMAIN_RENEW"
	HistoryDomainDelete          HistoryType = "DOMAIN_DELETE"
	HistoryDomainRestore         HistoryType = "DOMAIN_RESTORE"
	HistoryDomainTransferRequest HistoryType = "DOMAIN_TRANSFER_REQUEST"
	HistoryDomainTransferApprove HistoryType = "DOMAIN_TRANSFER_APPROVE"
	HistoryDomainTransferReject  HistoryType = "DOMAIN_TRANSFER_REJECT"
)

// HistoryEntry is the immutable audit record of one mutation: who changed
// the resource, how, when, and what the resource looked like afterwards.
// Entries are never updated or deleted except by the hard-delete cascade of
// their parent resource.
type HistoryEntry struct {
	ID               id.HistoryEntryID
	RepoID           id.RepoID
	Type             HistoryType
	RegistrarID      id.RegistrarID
	BySuperuser      bool
	Reason           string
	ModificationTime time.Time
	// ResourceState is the post-mutation snapshot of the domain, kept as
	// JSON so audits can reconstruct any revision without replaying flows.
	ResourceState json.RawMessage
}

// NewHistoryEntry snapshots the domain after a mutation. Snapshot failures
// are impossible for this struct shape, so the error path only guards
// against future field additions that do not marshal.
func NewHistoryEntry(d *Domain, historyType HistoryType, registrarID id.RegistrarID, superuser bool, reason string, now time.Time) (*HistoryEntry, error) {
	snapshot, err := json.Marshal(historySnapshot{
		Name:             d.Name,
		TLD:              d.TLD,
		RegistrarID:      d.RegistrarID.String(),
		CreationTime:     d.CreationTime,
		ExpirationTime:   d.ExpirationTime,
		DeletionTime:     d.DeletionTime,
		Statuses:         d.Statuses.Sorted(),
		SubordinateHosts: d.SubordinateHosts,
	})
	if err != nil {
		return nil, err
	}
	return &HistoryEntry{
		ID:               id.NewHistoryEntryID(),
		RepoID:           d.RepoID,
		Type:             historyType,
		RegistrarID:      registrarID,
		BySuperuser:      superuser,
		Reason:           reason,
		ModificationTime: now,
		ResourceState:    snapshot,
	}, nil
}

type historySnapshot struct {
	Name             string    `json:"name"`
	TLD              string    `json:"tld"`
	RegistrarID      string    `json:"registrarId"`
	CreationTime     time.Time `json:"creationTime"`
	ExpirationTime   time.Time `json:"expirationTime"`
	DeletionTime     time.Time `json:"deletionTime"`
	Statuses         []string  `json:"statuses"`
	SubordinateHosts []string  `json:"subordinateHosts,omitempty"`
}
