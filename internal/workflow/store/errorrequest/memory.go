// Package errorrequest persists error-correction tickets. Same store shape as
// the document store: memory for development and tests, postgres for
// production, per-ticket Execute serialization.
package errorrequest

import (
	"context"
	"sync"

	id "sevagate/pkg/domain"
	"sevagate/pkg/platform/sentinel"

	"sevagate/internal/workflow/models"
)

type InMemory struct {
	mu   sync.RWMutex
	byID map[id.ErrorRequestID]*models.ErrorRequest
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.ErrorRequestID]*models.ErrorRequest)}
}

func (s *InMemory) Create(_ context.Context, req *models.ErrorRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[req.ID]; exists {
		return sentinel.ErrAlreadyExists
	}
	s.byID[req.ID] = req.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.ErrorRequestID) (*models.ErrorRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.byID[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return req.Clone(), nil
}

// ListByDocument returns every ticket raised against the given document.
func (s *InMemory) ListByDocument(_ context.Context, documentID id.DocumentID) ([]*models.ErrorRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ErrorRequest
	for _, req := range s.byID {
		if req.DocumentID == documentID {
			out = append(out, req.Clone())
		}
	}
	return out, nil
}

// Execute atomically validates and mutates one ticket under the store lock.
func (s *InMemory) Execute(_ context.Context, requestID id.ErrorRequestID, validate func(*models.ErrorRequest) error, mutate func(*models.ErrorRequest)) (*models.ErrorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	next := current.Clone()
	if err := validate(next); err != nil {
		return nil, err
	}
	mutate(next)
	next.Version = current.Version + 1

	s.byID[requestID] = next
	return next.Clone(), nil
}
