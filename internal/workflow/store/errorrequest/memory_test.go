package errorrequest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/platform/sentinel"

	"sevagate/internal/workflow/models"
)

type ErrorRequestStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestErrorRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(ErrorRequestStoreSuite))
}

func (s *ErrorRequestStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *ErrorRequestStoreSuite) newRequest(docID id.DocumentID) *models.ErrorRequest {
	now := time.Now()
	return &models.ErrorRequest{
		ID:            id.ErrorRequestID(uuid.New()),
		DocumentID:    docID,
		ApplicationID: "APP-1",
		ErrorType:     models.ErrorTypeCertificate,
		Description:   "wrong name",
		Status:        models.RequestPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
}

func (s *ErrorRequestStoreSuite) TestCreateAndFind() {
	req := s.newRequest(id.DocumentID(uuid.New()))
	s.Require().NoError(s.store.Create(s.ctx, req))

	found, err := s.store.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.RequestPending, found.Status)

	_, err = s.store.FindByID(s.ctx, id.ErrorRequestID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ErrorRequestStoreSuite) TestListByDocument() {
	docID := id.DocumentID(uuid.New())
	s.Require().NoError(s.store.Create(s.ctx, s.newRequest(docID)))
	s.Require().NoError(s.store.Create(s.ctx, s.newRequest(docID)))
	s.Require().NoError(s.store.Create(s.ctx, s.newRequest(id.DocumentID(uuid.New()))))

	scoped, err := s.store.ListByDocument(s.ctx, docID)
	s.Require().NoError(err)
	s.Len(scoped, 2)
}

func (s *ErrorRequestStoreSuite) TestExecute() {
	s.Run("commits mutation with version bump", func() {
		req := s.newRequest(id.DocumentID(uuid.New()))
		s.Require().NoError(s.store.Create(s.ctx, req))

		updated, err := s.store.Execute(s.ctx, req.ID,
			func(r *models.ErrorRequest) error { return r.CanReject() },
			func(r *models.ErrorRequest) { r.ApplyRejection("wrong name", time.Now()) },
		)
		s.Require().NoError(err)
		s.Equal(models.RequestDistributorRejected, updated.Status)
		s.Equal(req.Version+1, updated.Version)
	})

	s.Run("failed validation leaves ticket unchanged", func() {
		req := s.newRequest(id.DocumentID(uuid.New()))
		req.Status = models.RequestCompleted
		s.Require().NoError(s.store.Create(s.ctx, req))

		_, err := s.store.Execute(s.ctx, req.ID,
			func(r *models.ErrorRequest) error { return r.CanReject() },
			func(r *models.ErrorRequest) { r.ApplyRejection("too late", time.Now()) },
		)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		found, err := s.store.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.RequestCompleted, found.Status)
	})
}
