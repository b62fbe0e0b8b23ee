// Package domain defines the typed identifiers shared across registry
// contexts. Keeping them in a leaf package lets stores, services, and
// transports agree on identity types without importing each other.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// RepoID is the globally unique repository identifier of a registry
// resource. It is immutable for the life of the record and survives
// soft deletion; only a hard delete removes it.
//
// The format is "XXXXXXXX-TLD": eight hex characters derived from a
// random UUID, then the upper-cased TLD of the resource.
type RepoID string

// NewRepoID mints a repository id for a resource under the given TLD.
func NewRepoID(tld string) RepoID {
	u := uuid.New()
	return RepoID(strings.ToUpper(u.String()[:8] + "-" + tld))
}

func (r RepoID) String() string { return string(r) }

// IsZero reports whether the id is unset.
func (r RepoID) IsZero() bool { return r == "" }

// RegistrarID identifies the sponsoring registrar of a resource. It is
// assigned out-of-band by the registry operator and treated as opaque here.
type RegistrarID string

func (r RegistrarID) String() string { return string(r) }

// IsZero reports whether the id is unset.
func (r RegistrarID) IsZero() bool { return r == "" }

// BillingEventID identifies one append-only billing record.
type BillingEventID uuid.UUID

// NewBillingEventID mints a random billing event id.
func NewBillingEventID() BillingEventID { return BillingEventID(uuid.New()) }

func (b BillingEventID) String() string { return uuid.UUID(b).String() }

// IsNil reports whether the id is unset.
func (b BillingEventID) IsNil() bool { return uuid.UUID(b) == uuid.Nil }

// ParseBillingEventID parses the canonical string form of a billing event id.
func ParseBillingEventID(s string) (BillingEventID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return BillingEventID{}, err
	}
	return BillingEventID(u), nil
}

// HistoryEntryID identifies one immutable history record.
type HistoryEntryID uuid.UUID

// NewHistoryEntryID mints a random history entry id.
func NewHistoryEntryID() HistoryEntryID { return HistoryEntryID(uuid.New()) }

func (h HistoryEntryID) String() string { return uuid.UUID(h).String() }

// IsNil reports whether the id is unset.
func (h HistoryEntryID) IsNil() bool { return uuid.UUID(h) == uuid.Nil }

// ParseHistoryEntryID parses the canonical string form of a history entry id.
func ParseHistoryEntryID(s string) (HistoryEntryID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return HistoryEntryID{}, err
	}
	return HistoryEntryID(u), nil
}

// PollMessageID identifies one queued registrar notification.
type PollMessageID uuid.UUID

// NewPollMessageID mints a random poll message id.
func NewPollMessageID() PollMessageID { return PollMessageID(uuid.New()) }

func (p PollMessageID) String() string { return uuid.UUID(p).String() }

// IsNil reports whether the id is unset.
func (p PollMessageID) IsNil() bool { return uuid.UUID(p) == uuid.Nil }

// ParsePollMessageID parses the canonical string form of a poll message id.
func ParsePollMessageID(s string) (PollMessageID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PollMessageID{}, err
	}
	return PollMessageID(u), nil
}
