// Package certificate persists certificate artifacts, one active row per
// document. Upsert carries the replace-not-append semantics: re-registering a
// certificate for a document overwrites the prior file URL in place.
package certificate

import (
	"context"
	"sync"

	id "sevagate/pkg/domain"
	"sevagate/pkg/platform/sentinel"

	"sevagate/internal/workflow/models"
)

// InMemory keys certificates by document ID, which enforces the
// one-active-certificate invariant structurally.
type InMemory struct {
	mu         sync.RWMutex
	byDocument map[id.DocumentID]*models.Certificate
}

func NewInMemory() *InMemory {
	return &InMemory{byDocument: make(map[id.DocumentID]*models.Certificate)}
}

// Upsert stores or replaces the certificate for its document. The certificate
// ID is preserved across replacements so external references stay stable.
func (s *InMemory) Upsert(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byDocument[cert.DocumentID]; ok {
		replacement := *cert
		replacement.ID = existing.ID
		s.byDocument[cert.DocumentID] = &replacement
		return nil
	}

	cp := *cert
	s.byDocument[cert.DocumentID] = &cp
	return nil
}

// FindByDocument returns the active certificate or sentinel.ErrNotFound.
func (s *InMemory) FindByDocument(_ context.Context, documentID id.DocumentID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.byDocument[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *cert
	return &cp, nil
}

// DeleteByDocument removes the certificate when its parent document is purged.
func (s *InMemory) DeleteByDocument(_ context.Context, documentID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byDocument, documentID)
	return nil
}
