package domains

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/platform/sentinel"
)

// InMemory mirrors the PostgreSQL store for unit tests and local wiring.
// It stores deep copies so callers cannot mutate shared state through a
// returned aggregate.
type InMemory struct {
	mu      sync.RWMutex
	domains map[id.RepoID]*models.Domain
	hosts   map[string]id.RepoID
}

// NewInMemory builds an empty memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		domains: make(map[id.RepoID]*models.Domain),
		hosts:   make(map[string]id.RepoID),
	}
}

func (s *InMemory) Create(_ context.Context, d *models.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[d.RepoID]; ok {
		return fmt.Errorf("create domain %s: %w", d.Name, sentinel.ErrAlreadyExists)
	}
	s.domains[d.RepoID] = cloneDomain(d)
	return nil
}

func (s *InMemory) Update(_ context.Context, d *models.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[d.RepoID]; !ok {
		return fmt.Errorf("update domain %s: %w", d.RepoID, sentinel.ErrNotFound)
	}
	s.domains[d.RepoID] = cloneDomain(d)
	return nil
}

func (s *InMemory) GetLiveByName(ctx context.Context, name string, now time.Time) (*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if d.Name == name && d.IsActive(now) {
			return s.withHosts(cloneDomain(d)), nil
		}
	}
	return nil, fmt.Errorf("domain %s: %w", name, sentinel.ErrNotFound)
}

func (s *InMemory) GetByRepoID(_ context.Context, repoID id.RepoID) (*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[repoID]
	if !ok {
		return nil, fmt.Errorf("domain %s: %w", repoID, sentinel.ErrNotFound)
	}
	return s.withHosts(cloneDomain(d)), nil
}

func (s *InMemory) ExistsLive(_ context.Context, name string, now time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if d.Name == name && d.IsActive(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) ListSweepCandidates(_ context.Context, query SweepQuery) ([]*models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inScope := make(map[string]bool, len(query.TLDs))
	for _, tld := range query.TLDs {
		inScope[tld] = true
	}

	var out []*models.Domain
	for _, d := range s.domains {
		if !inScope[d.TLD] || strings.HasPrefix(d.Name, "nic.") {
			continue
		}
		if s.hasSubordinateHosts(d.RepoID) {
			continue
		}
		if !d.CreationTime.Before(query.UsedCutoff) {
			continue
		}
		if d.DeletionTime.After(query.Now) || d.DeletionTime.Before(query.SoftDeleteCutoff) {
			out = append(out, s.withHosts(cloneDomain(d)))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationTime.Before(out[j].CreationTime) })
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (s *InMemory) HardDelete(_ context.Context, repoIDs []id.RepoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, repoID := range repoIDs {
		delete(s.domains, repoID)
	}
	return nil
}

func (s *InMemory) AddSubordinateHost(_ context.Context, repoID id.RepoID, hostName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts[hostName] = repoID
	return nil
}

func (s *InMemory) DeleteHostsByNames(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.hosts, name)
	}
	return nil
}

// Hosts returns the host rows referencing the domain; used by tests to
// verify cascade completeness.
func (s *InMemory) Hosts(repoID id.RepoID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, owner := range s.hosts {
		if owner == repoID {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *InMemory) hasSubordinateHosts(repoID id.RepoID) bool {
	for _, owner := range s.hosts {
		if owner == repoID {
			return true
		}
	}
	return false
}

func (s *InMemory) withHosts(d *models.Domain) *models.Domain {
	d.SubordinateHosts = nil
	for name, owner := range s.hosts {
		if owner == d.RepoID {
			d.SubordinateHosts = append(d.SubordinateHosts, name)
		}
	}
	sort.Strings(d.SubordinateHosts)
	return d
}

func cloneDomain(d *models.Domain) *models.Domain {
	out := *d
	out.Statuses = d.Statuses.Clone()
	out.GracePeriods = append([]models.GracePeriod(nil), d.GracePeriods...)
	out.SubordinateHosts = append([]string(nil), d.SubordinateHosts...)
	if d.PendingTransfer != nil {
		transfer := *d.PendingTransfer
		out.PendingTransfer = &transfer
	}
	return &out
}
