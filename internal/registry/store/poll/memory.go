package poll

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/platform/sentinel"
)

// InMemory mirrors the PostgreSQL poll store for unit tests.
type InMemory struct {
	mu       sync.RWMutex
	messages map[id.PollMessageID]*models.PollMessage
}

// NewInMemory builds an empty memory poll store.
func NewInMemory() *InMemory {
	return &InMemory{messages: make(map[id.PollMessageID]*models.PollMessage)}
}

func (s *InMemory) Enqueue(_ context.Context, msg *models.PollMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *msg
	s.messages[msg.ID] = &clone
	return nil
}

func (s *InMemory) ListByRegistrar(_ context.Context, registrarID id.RegistrarID, limit int) ([]*models.PollMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PollMessage
	for _, msg := range s.messages {
		if msg.RegistrarID == registrarID {
			clone := *msg
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) Ack(_ context.Context, msgID id.PollMessageID, registrarID id.RegistrarID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[msgID]
	if !ok || msg.RegistrarID != registrarID {
		return fmt.Errorf("poll message %s: %w", msgID, sentinel.ErrNotFound)
	}
	delete(s.messages, msgID)
	return nil
}

func (s *InMemory) DeleteByRepoIDs(_ context.Context, repoIDs []id.RepoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[id.RepoID]bool, len(repoIDs))
	for _, r := range repoIDs {
		drop[r] = true
	}
	for msgID, msg := range s.messages {
		if drop[msg.RepoID] {
			delete(s.messages, msgID)
		}
	}
	return nil
}
