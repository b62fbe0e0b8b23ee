package models

import (
	"strings"
	"time"

	id "regcore/pkg/domain"
	dErrors "regcore/pkg/domain-errors"
)

// EndOfTime is the sentinel deletion time of a live resource. Deletion is
// always represented as a timestamp, never as a boolean flag: a resource
// is soft-deleted the instant its DeletionTime falls into the past, and
// its row only disappears at hard delete.
var EndOfTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Domain is the aggregate root for one registered domain name.
//
// Invariants:
//   - RepoID, Name, TLD, and CreationTime are immutable after construction
//   - CreationTime <= DeletionTime always; a violation marks the row as
//     defective and excludes it from automated mutation
//   - liveness is derived: active(now) == CreationTime <= now < DeletionTime
//   - a soft-deleted domain carries no statuses and no grace periods
//   - PendingTransfer is non-nil exactly while StatusPendingTransfer is set
//
// GracePeriods and SubordinateHosts are persisted as dependent rows keyed
// by RepoID; the store loads and saves them together with the parent so a
// commit boundary never observes a half-written aggregate.
type Domain struct {
	RepoID      id.RepoID
	Name        string
	TLD         string
	RegistrarID id.RegistrarID

	CreationTime   time.Time
	ExpirationTime time.Time
	DeletionTime   time.Time
	LastUpdateTime time.Time

	Statuses     StatusSet
	GracePeriods []GracePeriod

	// SubordinateHosts lists host names delegated under this domain
	// (e.g. ns1.example.test). Their presence blocks deletion and they
	// are cascaded away at hard delete.
	SubordinateHosts []string

	PendingTransfer *TransferData
}

// NewDomain constructs a freshly created, immediately active domain and
// validates every cross-field invariant up front. There is deliberately no
// builder: an invalid intermediate Domain must never exist.
func NewDomain(name string, registrarID id.RegistrarID, years int, now time.Time) (*Domain, error) {
	name, tld, err := ParseDomainName(name)
	if err != nil {
		return nil, err
	}
	if registrarID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "sponsoring registrar is required")
	}
	if years < 1 || years > 10 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "registration period must be between 1 and 10 years")
	}
	return &Domain{
		RepoID:         id.NewRepoID(tld),
		Name:           name,
		TLD:            tld,
		RegistrarID:    registrarID,
		CreationTime:   now,
		ExpirationTime: now.AddDate(years, 0, 0),
		DeletionTime:   EndOfTime,
		LastUpdateTime: now,
		Statuses:       NewStatusSet(StatusInactive),
	}, nil
}

// IsActive implements the liveness invariant over timestamps. The answer
// is computed on every read; it is never stored.
func (d *Domain) IsActive(now time.Time) bool {
	return !d.CreationTime.After(now) && now.Before(d.DeletionTime)
}

// IsSoftDeleted reports whether the deletion instant has passed while the
// row still physically exists.
func (d *Domain) IsSoftDeleted(now time.Time) bool {
	return !now.Before(d.DeletionTime)
}

// CheckConsistency reports a defect when the stored timestamps contradict
// each other. Flows and sweeps call this after every load and refuse to
// mutate a defective row.
func (d *Domain) CheckConsistency() error {
	if d.DeletionTime.Before(d.CreationTime) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"domain %s (%s) has deletionTime before creationTime", d.Name, d.RepoID)
	}
	if d.PendingTransfer != nil != d.Statuses.Has(StatusPendingTransfer) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"domain %s (%s) transfer data and pendingTransfer status disagree", d.Name, d.RepoID)
	}
	return nil
}

// GracePeriod returns the live grace period of the given type, if any.
// Expired entries are ignored; the store prunes them lazily.
func (d *Domain) GracePeriod(gpType GracePeriodType, now time.Time) (GracePeriod, bool) {
	for _, gp := range d.GracePeriods {
		if gp.Type == gpType && now.Before(gp.ExpirationTime) {
			return gp, true
		}
	}
	return GracePeriod{}, false
}

// RemoveGracePeriods drops every grace period of the given types.
func (d *Domain) RemoveGracePeriods(types ...GracePeriodType) {
	kept := d.GracePeriods[:0]
	for _, gp := range d.GracePeriods {
		drop := false
		for _, t := range types {
			if gp.Type == t {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, gp)
		}
	}
	d.GracePeriods = kept
}

// AddGracePeriod appends a grace period, enforcing the co-occurrence rules
// against every other live entry.
func (d *Domain) AddGracePeriod(gp GracePeriod, now time.Time) error {
	for _, existing := range d.GracePeriods {
		if !now.Before(existing.ExpirationTime) {
			continue
		}
		if existing.Type == gp.Type {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"domain %s already carries a %s grace period", d.Name, gp.Type)
		}
		if !CanCoexist(existing.Type, gp.Type) {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"grace periods %s and %s cannot coexist on %s", existing.Type, gp.Type, d.Name)
		}
	}
	d.GracePeriods = append(d.GracePeriods, gp)
	return nil
}

// ParseDomainName normalizes a name to its stored form and extracts the TLD.
func ParseDomainName(name string) (string, string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	tld, err := tldOf(name)
	if err != nil {
		return "", "", err
	}
	return name, tld, nil
}

func tldOf(name string) (string, error) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "domain name %q has no TLD", name)
	}
	return name[i+1:], nil
}
