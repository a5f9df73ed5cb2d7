// Package document persists Document aggregates. The in-memory store backs
// development and unit tests; PostgresStore is the production implementation.
// Both serialize per-document mutation through Execute so concurrent
// transitions can never commit from stale state.
package document

import (
	"context"
	"sync"

	id "sevagate/pkg/domain"
	"sevagate/pkg/platform/sentinel"

	"sevagate/internal/workflow/models"
)

// InMemory stores documents in a map guarded by a RWMutex. The write lock is
// held across validate-then-mutate in Execute, which is the whole concurrency
// guarantee for this implementation.
type InMemory struct {
	mu    sync.RWMutex
	byID  map[id.DocumentID]*models.Document
	byApp map[string]id.DocumentID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:  make(map[id.DocumentID]*models.Document),
		byApp: make(map[string]id.DocumentID),
	}
}

// Create inserts a new document. Application IDs are unique.
func (s *InMemory) Create(_ context.Context, doc *models.Document) error {
	if err := doc.CheckInvariants(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[doc.ID]; exists {
		return sentinel.ErrAlreadyExists
	}
	if _, exists := s.byApp[doc.ApplicationID]; exists {
		return sentinel.ErrAlreadyExists
	}

	s.byID[doc.ID] = doc.Clone()
	s.byApp[doc.ApplicationID] = doc.ID
	return nil
}

// FindByID returns a copy of the document or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, documentID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byID[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return doc.Clone(), nil
}

// ListByUser returns the documents owned by the given customer.
func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Document
	for _, doc := range s.byID {
		if doc.UserID == userID {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// ListByDistributor returns the documents assigned to the given distributor.
func (s *InMemory) ListByDistributor(_ context.Context, distributorID id.UserID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Document
	for _, doc := range s.byID {
		if doc.AssignedTo(distributorID) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// ListAll returns every document; the admin triage view.
func (s *InMemory) ListAll(_ context.Context) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Document, 0, len(s.byID))
	for _, doc := range s.byID {
		out = append(out, doc.Clone())
	}
	return out, nil
}

// Execute atomically validates and mutates one document. The store lock is
// held for the whole callback pair, so a concurrent Execute on the same
// document observes the committed result, never intermediate state. The
// version counter increments on every committed mutation.
func (s *InMemory) Execute(_ context.Context, documentID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	next := current.Clone()
	if err := validate(next); err != nil {
		return nil, err
	}
	mutate(next)
	next.Version = current.Version + 1

	if err := next.CheckInvariants(); err != nil {
		return nil, err
	}

	s.byID[documentID] = next
	return next.Clone(), nil
}
