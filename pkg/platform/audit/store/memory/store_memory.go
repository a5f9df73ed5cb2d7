// Package memory provides an in-memory audit store for development and tests.
package memory

import (
	"context"
	"sync"

	id "sevagate/pkg/domain"
	audit "sevagate/pkg/platform/audit"
)

// InMemoryStore keeps events per document in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.DocumentID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.DocumentID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.DocumentID] = append(s.events[event.DocumentID], event)
	return nil
}

func (s *InMemoryStore) ListByDocument(_ context.Context, documentID id.DocumentID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[documentID]
	out := make([]audit.Event, len(events))
	copy(out, events)
	return out, nil
}
