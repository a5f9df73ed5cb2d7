package service

import (
	"github.com/google/uuid"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/requestcontext"

	"sevagate/internal/workflow/models"
)

// completeLifecycle drives a fresh document all the way to Completed so error
// requests become creatable.
func (s *ServiceSuite) completeLifecycle() *models.Document {
	doc := s.submit()
	s.approve(doc.ID)
	_, err := s.svc.RegisterReceipt(s.as(s.distributor), doc.ID, pdfUpload(64))
	s.Require().NoError(err)
	_, err = s.svc.Transition(s.as(s.distributor), doc.ID, models.StatusSent, TransitionPayload{})
	s.Require().NoError(err)
	_, err = s.svc.RegisterCertificate(s.as(s.distributor), doc.ID, pdfUpload(64))
	s.Require().NoError(err)
	_, err = s.svc.Transition(s.as(s.distributor), doc.ID, models.StatusUploaded, TransitionPayload{})
	s.Require().NoError(err)
	completed, err := s.svc.Transition(s.as(s.customer), doc.ID, models.StatusCompleted, TransitionPayload{})
	s.Require().NoError(err)
	return completed
}

func (s *ServiceSuite) TestCreateErrorRequestGuards() {
	s.Run("parent must be completed", func() {
		pending := s.submit()
		_, err := s.svc.CreateErrorRequest(s.as(s.customer), pending.ID,
			models.ErrorTypeCertificate, "certificate carries the wrong name", "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("customer only", func() {
		doc := s.completeLifecycle()
		_, err := s.svc.CreateErrorRequest(s.as(s.admin), doc.ID,
			models.ErrorTypeCertificate, "wrong name", "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("owner only", func() {
		doc := s.completeLifecycle()
		stranger := requestcontext.Principal{UserID: id.UserID(uuid.New()), Role: id.RoleCustomer}
		_, err := s.svc.CreateErrorRequest(s.as(stranger), doc.ID,
			models.ErrorTypeCertificate, "wrong name", "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("description required", func() {
		doc := s.completeLifecycle()
		_, err := s.svc.CreateErrorRequest(s.as(s.customer), doc.ID,
			models.ErrorTypeCertificate, "   ", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("created pending with denormalized application id", func() {
		doc := s.completeLifecycle()
		req, err := s.svc.CreateErrorRequest(s.as(s.customer), doc.ID,
			models.ErrorTypeCertificate, "certificate carries the wrong name", "https://evidence/scan.png")
		s.Require().NoError(err)
		s.Equal(models.RequestPending, req.Status)
		s.Equal(doc.ApplicationID, req.ApplicationID)
		s.Equal("https://evidence/scan.png", req.EvidenceURL)
	})
}

func (s *ServiceSuite) TestRejectErrorRequest() {
	doc := s.completeLifecycle()
	req, err := s.svc.CreateErrorRequest(s.as(s.customer), doc.ID,
		models.ErrorTypeReceipt, "receipt amount mismatch", "")
	s.Require().NoError(err)

	s.Run("assigned distributor only", func() {
		other := requestcontext.Principal{UserID: id.UserID(uuid.New()), Role: id.RoleDistributor}
		_, err := s.svc.RejectErrorRequest(s.as(other), req.ID, "not my document")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("reason mandatory", func() {
		_, err := s.svc.RejectErrorRequest(s.as(s.distributor), req.ID, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects with reason, terminal", func() {
		rejected, err := s.svc.RejectErrorRequest(s.as(s.distributor), req.ID, "amount matches the invoice")
		s.Require().NoError(err)
		s.Equal(models.RequestDistributorRejected, rejected.Status)
		s.Equal("amount matches the invoice", rejected.RejectionReason)

		_, err = s.svc.RejectErrorRequest(s.as(s.distributor), req.ID, "again")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "terminal requests stay closed")
	})
}

func (s *ServiceSuite) TestResolveAndCompleteErrorRequest() {
	doc := s.completeLifecycle()

	s.Run("certificate correction lands in Uploaded", func() {
		req, err := s.svc.CreateErrorRequest(s.as(s.customer), doc.ID,
			models.ErrorTypeCertificate, "wrong name on certificate", "")
		s.Require().NoError(err)

		resolved, err := s.svc.ResolveErrorRequest(s.as(s.distributor), req.ID, pdfUpload(128))
		s.Require().NoError(err)
		s.Equal(models.RequestUploaded, resolved.Status)

		// The parent document keeps its status; only the artifact changed.
		parent, err := s.svc.Get(s.as(s.admin), doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, parent.Status)

		s.Run("admin completes a resolved request", func() {
			_, err := s.svc.CompleteErrorRequest(s.as(s.distributor), req.ID)
			s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

			done, err := s.svc.CompleteErrorRequest(s.as(s.admin), req.ID)
			s.Require().NoError(err)
			s.Equal(models.RequestCompleted, done.Status)
		})
	})

	s.Run("payment correction lands in Receipt Uploaded", func() {
		req, err := s.svc.CreateErrorRequest(s.as(s.customer), doc.ID,
			models.ErrorTypePayment, "charged twice", "")
		s.Require().NoError(err)

		resolved, err := s.svc.ResolveErrorRequest(s.as(s.distributor), req.ID, pdfUpload(128))
		s.Require().NoError(err)
		s.Equal(models.RequestReceiptUploaded, resolved.Status)
	})

	s.Run("pending requests cannot be completed", func() {
		req, err := s.svc.CreateErrorRequest(s.as(s.customer), doc.ID,
			models.ErrorTypeReceipt, "receipt missing a line", "")
		s.Require().NoError(err)

		_, err = s.svc.CompleteErrorRequest(s.as(s.admin), req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("listing is scoped", func() {
		reqs, err := s.svc.ListErrorRequests(s.as(s.customer), doc.ID)
		s.Require().NoError(err)
		s.Len(reqs, 3)

		stranger := requestcontext.Principal{UserID: id.UserID(uuid.New()), Role: id.RoleCustomer}
		_, err = s.svc.ListErrorRequests(s.as(stranger), doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
