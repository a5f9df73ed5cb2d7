package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
)

type ErrorRequestSuite struct {
	suite.Suite
	now time.Time
	doc *Document
}

func TestErrorRequestSuite(t *testing.T) {
	suite.Run(t, new(ErrorRequestSuite))
}

func (s *ErrorRequestSuite) SetupTest() {
	s.now = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	doc, err := NewDocument(
		id.DocumentID(uuid.New()),
		"APP-20260901-XY99ZZ",
		id.UserID(uuid.New()),
		"cat", "sub", nil, s.now,
	)
	s.Require().NoError(err)
	s.doc = doc
}

func (s *ErrorRequestSuite) completeDocument() {
	s.doc.ApplyAssignment(id.UserID(uuid.New()), "")
	s.doc.ApplyStatus(StatusApproved, s.now)
	s.doc.ApplyStatus(StatusSent, s.now)
	s.doc.ApplyStatus(StatusUploaded, s.now)
	s.doc.ApplyStatus(StatusCompleted, s.now)
}

func (s *ErrorRequestSuite) TestNewErrorRequest() {
	s.Run("requires completed parent", func() {
		_, err := NewErrorRequest(id.ErrorRequestID(uuid.New()), s.doc,
			ErrorTypeCertificate, "wrong name on certificate", "", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("succeeds for completed parent", func() {
		s.completeDocument()
		req, err := NewErrorRequest(id.ErrorRequestID(uuid.New()), s.doc,
			ErrorTypeCertificate, "wrong name on certificate", "https://files/evidence.png", s.now)
		s.Require().NoError(err)
		s.Equal(RequestPending, req.Status)
		s.Equal(s.doc.ApplicationID, req.ApplicationID)
	})

	s.Run("succeeds for received parent", func() {
		s.completeDocument()
		s.doc.ApplyStatus(StatusReceived, s.now)
		_, err := NewErrorRequest(id.ErrorRequestID(uuid.New()), s.doc,
			ErrorTypeReceipt, "amount mismatch", "", s.now)
		s.NoError(err)
	})

	s.Run("requires description", func() {
		s.completeDocument()
		_, err := NewErrorRequest(id.ErrorRequestID(uuid.New()), s.doc,
			ErrorTypeReceipt, "   ", "", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ErrorRequestSuite) newPendingRequest(errorType ErrorType) *ErrorRequest {
	s.completeDocument()
	req, err := NewErrorRequest(id.ErrorRequestID(uuid.New()), s.doc,
		errorType, "description", "", s.now)
	s.Require().NoError(err)
	return req
}

func (s *ErrorRequestSuite) TestRejection() {
	req := s.newPendingRequest(ErrorTypeCertificate)

	s.NoError(req.CanReject())
	req.ApplyRejection("wrong name", s.now.Add(time.Hour))

	s.Equal(RequestDistributorRejected, req.Status)
	s.Equal("wrong name", req.RejectionReason)
	s.True(req.Status.Terminal())

	s.Error(req.CanReject(), "terminal request cannot be rejected again")
	s.Error(req.CanResolve())
}

func (s *ErrorRequestSuite) TestResolution() {
	s.Run("certificate correction lands in Uploaded", func() {
		req := s.newPendingRequest(ErrorTypeCertificate)
		s.NoError(req.CanResolve())
		req.ApplyResolution(s.now.Add(time.Hour))
		s.Equal(RequestUploaded, req.Status)
	})

	s.Run("receipt correction lands in Receipt Uploaded", func() {
		req := s.newPendingRequest(ErrorTypeReceipt)
		req.ApplyResolution(s.now.Add(time.Hour))
		s.Equal(RequestReceiptUploaded, req.Status)
	})

	s.Run("payment correction lands in Receipt Uploaded", func() {
		req := s.newPendingRequest(ErrorTypePayment)
		req.ApplyResolution(s.now.Add(time.Hour))
		s.Equal(RequestReceiptUploaded, req.Status)
	})
}

func (s *ErrorRequestSuite) TestCompletion() {
	req := s.newPendingRequest(ErrorTypeCertificate)

	s.Error(req.CanComplete(), "pending request is not yet resolvable to Completed")

	req.ApplyResolution(s.now.Add(time.Hour))
	s.NoError(req.CanComplete())

	req.ApplyCompletion(s.now.Add(2 * time.Hour))
	s.Equal(RequestCompleted, req.Status)
	s.True(req.Status.Terminal())
}
