package billing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"regcore/internal/registry/models"
	id "regcore/pkg/domain"
	"regcore/pkg/platform/sentinel"
)

// InMemory mirrors the PostgreSQL billing store for unit tests.
type InMemory struct {
	mu            sync.RWMutex
	oneTimes      map[id.BillingEventID]*models.OneTimeEvent
	recurrences   map[id.RepoID]*models.RecurrenceEvent
	cancellations map[id.BillingEventID]*models.CancellationEvent // keyed by cancelled event
}

// NewInMemory builds an empty memory billing store.
func NewInMemory() *InMemory {
	return &InMemory{
		oneTimes:      make(map[id.BillingEventID]*models.OneTimeEvent),
		recurrences:   make(map[id.RepoID]*models.RecurrenceEvent),
		cancellations: make(map[id.BillingEventID]*models.CancellationEvent),
	}
}

func (s *InMemory) CreateOneTime(_ context.Context, ev *models.OneTimeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *ev
	s.oneTimes[ev.ID] = &clone
	return nil
}

func (s *InMemory) UpsertRecurrence(_ context.Context, ev *models.RecurrenceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *ev
	if existing, ok := s.recurrences[ev.RepoID]; ok {
		// The row keeps its original identity across end-time moves.
		clone.ID = existing.ID
		clone.StartTime = existing.StartTime
	}
	s.recurrences[ev.RepoID] = &clone
	return nil
}

func (s *InMemory) GetRecurrence(_ context.Context, repoID id.RepoID) (*models.RecurrenceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.recurrences[repoID]
	if !ok {
		return nil, fmt.Errorf("recurrence for %s: %w", repoID, sentinel.ErrNotFound)
	}
	clone := *ev
	return &clone, nil
}

func (s *InMemory) CreateCancellationIfAbsent(_ context.Context, ev *models.CancellationEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cancellations[ev.CancelledEventID]; ok {
		return false, nil
	}
	clone := *ev
	s.cancellations[ev.CancelledEventID] = &clone
	return true, nil
}

func (s *InMemory) ListOneTimes(_ context.Context, repoID id.RepoID) ([]*models.OneTimeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.OneTimeEvent
	for _, ev := range s.oneTimes {
		if ev.RepoID == repoID {
			clone := *ev
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}

func (s *InMemory) ListCancellations(_ context.Context, repoID id.RepoID) ([]*models.CancellationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CancellationEvent
	for _, ev := range s.cancellations {
		if ev.RepoID == repoID {
			clone := *ev
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}

func (s *InMemory) DeleteByRepoIDs(_ context.Context, repoIDs []id.RepoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[id.RepoID]bool, len(repoIDs))
	for _, r := range repoIDs {
		drop[r] = true
	}
	for eventID, ev := range s.oneTimes {
		if drop[ev.RepoID] {
			delete(s.oneTimes, eventID)
		}
	}
	for repoID := range s.recurrences {
		if drop[repoID] {
			delete(s.recurrences, repoID)
		}
	}
	for cancelledID, ev := range s.cancellations {
		if drop[ev.RepoID] {
			delete(s.cancellations, cancelledID)
		}
	}
	return nil
}
