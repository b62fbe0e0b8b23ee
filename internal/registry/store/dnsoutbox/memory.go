package dnsoutbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemory mirrors the PostgreSQL outbox for unit tests.
type InMemory struct {
	mu       sync.Mutex
	nextID   int64
	requests []Request
}

// NewInMemory builds an empty memory outbox.
func NewInMemory() *InMemory {
	return &InMemory{nextID: 1}
}

func (s *InMemory) Enqueue(_ context.Context, domainName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.DomainName == domainName && req.PublishedAt == nil {
			return nil
		}
	}
	s.requests = append(s.requests, Request{ID: s.nextID, DomainName: domainName, RequestedAt: at})
	s.nextID++
	return nil
}

func (s *InMemory) ListPending(_ context.Context, limit int) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, req := range s.requests {
		if req.PublishedAt == nil {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, ids []int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mark := make(map[int64]bool, len(ids))
	for _, reqID := range ids {
		mark[reqID] = true
	}
	for i := range s.requests {
		if mark[s.requests[i].ID] && s.requests[i].PublishedAt == nil {
			t := at
			s.requests[i].PublishedAt = &t
		}
	}
	return nil
}

// All returns every row for test assertions.
func (s *InMemory) All() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}
