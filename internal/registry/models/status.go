package models

import (
	"sort"
	"strings"
)

// Status is one EPP-style status flag on a resource. Client-settable flags
// express registrar intent; server flags express registry policy and always
// win when both would apply to the same operation.
type Status string

const (
	StatusClientDeleteProhibited   Status = "clientDeleteProhibited"
	StatusClientRenewProhibited    Status = "clientRenewProhibited"
	StatusClientTransferProhibited Status = "clientTransferProhibited"
	StatusClientUpdateProhibited   Status = "clientUpdateProhibited"
	StatusClientHold               Status = "clientHold"

	StatusServerDeleteProhibited   Status = "serverDeleteProhibited"
	StatusServerRenewProhibited    Status = "serverRenewProhibited"
	StatusServerTransferProhibited Status = "serverTransferProhibited"
	StatusServerUpdateProhibited   Status = "serverUpdateProhibited"
	StatusServerHold               Status = "serverHold"

	// StatusInactive marks a domain with no delegated name servers; it is
	// maintained by the registry, not settable by registrars.
	StatusInactive Status = "inactive"

	StatusPendingCreate   Status = "pendingCreate"
	StatusPendingDelete   Status = "pendingDelete"
	StatusPendingTransfer Status = "pendingTransfer"
)

// ServerManaged reports whether only the registry may set or clear the flag.
func (s Status) ServerManaged() bool {
	return !strings.HasPrefix(string(s), "client")
}

// StatusSet is the set of status flags on one resource.
type StatusSet map[Status]struct{}

// NewStatusSet builds a set from the given flags.
func NewStatusSet(statuses ...Status) StatusSet {
	set := make(StatusSet, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

func (set StatusSet) Has(s Status) bool {
	_, ok := set[s]
	return ok
}

func (set StatusSet) Add(statuses ...Status) {
	for _, s := range statuses {
		set[s] = struct{}{}
	}
}

func (set StatusSet) Remove(statuses ...Status) {
	for _, s := range statuses {
		delete(set, s)
	}
}

// Clone returns an independent copy of the set.
func (set StatusSet) Clone() StatusSet {
	out := make(StatusSet, len(set))
	for s := range set {
		out[s] = struct{}{}
	}
	return out
}

// Sorted returns the flags in deterministic order for persistence and logs.
func (set StatusSet) Sorted() []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// ParseStatusSet rebuilds a set from its persisted form.
func ParseStatusSet(values []string) StatusSet {
	set := make(StatusSet, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[Status(v)] = struct{}{}
	}
	return set
}
