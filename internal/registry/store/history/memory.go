package history

import (
	"context"
	"sort"
	"sync"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
)

// InMemory mirrors the PostgreSQL history store for unit tests.
type InMemory struct {
	mu      sync.RWMutex
	entries []*models.HistoryEntry
}

// NewInMemory builds an empty memory history store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *entry
	s.entries = append(s.entries, &clone)
	return nil
}

func (s *InMemory) ListByRepoID(_ context.Context, repoID id.RepoID) ([]*models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.HistoryEntry
	for _, entry := range s.entries {
		if entry.RepoID == repoID {
			clone := *entry
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModificationTime.Before(out[j].ModificationTime)
	})
	return out, nil
}

func (s *InMemory) DeleteByRepoIDs(_ context.Context, repoIDs []id.RepoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[id.RepoID]bool, len(repoIDs))
	for _, r := range repoIDs {
		drop[r] = true
	}
	kept := s.entries[:0]
	for _, entry := range s.entries {
		if !drop[entry.RepoID] {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
	return nil
}
