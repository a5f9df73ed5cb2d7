package artifact

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"

	"sevagate/internal/workflow/models"
	certstore "sevagate/internal/workflow/store/certificate"
	docstore "sevagate/internal/workflow/store/document"
)

type RegistrySuite struct {
	suite.Suite

	ctx          context.Context
	documents    *docstore.InMemory
	certificates *certstore.InMemory
	objects      *MemoryObjectStore
	registry     *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.documents = docstore.NewInMemory()
	s.certificates = certstore.NewInMemory()
	s.objects = NewMemoryObjectStore("")
	s.registry = NewRegistry(s.documents, s.certificates, s.objects, nil)
}

func (s *RegistrySuite) seedDocument(status models.Status) id.DocumentID {
	docID := id.DocumentID(uuid.New())
	doc, err := models.NewDocument(docID, "APP-"+docID.String()[:8], id.UserID(uuid.New()),
		"cat-income", "sub-salary", nil, time.Now())
	s.Require().NoError(err)
	switch status {
	case models.StatusPending:
	case models.StatusRejected:
		doc.ApplyRejection("missing pages", nil, time.Now())
	default:
		doc.ApplyStatus(status, time.Now())
	}
	s.Require().NoError(s.documents.Create(s.ctx, doc))
	return docID
}

func pdfUpload(size int64) Upload {
	return Upload{
		Filename:    "artifact.pdf",
		ContentType: "application/pdf",
		Size:        size,
		Content:     bytes.NewReader(bytes.Repeat([]byte{0x25}, int(size))),
	}
}

func (s *RegistrySuite) TestUploadValidation() {
	cases := []struct {
		name   string
		upload Upload
		code   dErrors.Code
	}{
		{"empty file", Upload{Filename: "r.pdf", ContentType: "application/pdf", Size: 0}, dErrors.CodeValidation},
		{"oversize file", Upload{Filename: "r.pdf", ContentType: "application/pdf", Size: MaxSize + 1}, dErrors.CodeTooLarge},
		{"unsupported type", Upload{Filename: "r.gif", ContentType: "image/gif", Size: 64}, dErrors.CodeUnsupportedFile},
		{"content type with params", Upload{Filename: "r.png", ContentType: "image/png; charset=binary", Size: 64, Content: strings.NewReader("x")}, ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := tc.upload.Validate()
			if tc.code == "" {
				s.NoError(err)
				return
			}
			s.True(dErrors.HasCode(err, tc.code), "want %s, got %v", tc.code, err)
		})
	}
}

func (s *RegistrySuite) TestReceiptRequiresApprovedDocument() {
	for _, status := range []models.Status{models.StatusPending, models.StatusRejected} {
		docID := s.seedDocument(status)
		_, err := s.registry.RegisterReceipt(s.ctx, docID, pdfUpload(128))
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed), "status %s: %v", status, err)
	}
}

func (s *RegistrySuite) TestReceiptUnknownDocument() {
	_, err := s.registry.RegisterReceipt(s.ctx, id.DocumentID(uuid.New()), pdfUpload(128))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistrySuite) TestReceiptRecordsURLWithoutTouchingStatus() {
	docID := s.seedDocument(models.StatusApproved)

	url, err := s.registry.RegisterReceipt(s.ctx, docID, pdfUpload(128))
	s.Require().NoError(err)
	s.NotEmpty(url)

	doc, err := s.documents.FindByID(s.ctx, docID)
	s.Require().NoError(err)
	s.Equal(url, doc.ReceiptURL)
	s.Equal(models.StatusApproved, doc.Status, "registration must not advance the workflow")
}

func (s *RegistrySuite) TestReceiptReplacementOverwrites() {
	docID := s.seedDocument(models.StatusApproved)

	first, err := s.registry.RegisterReceipt(s.ctx, docID, pdfUpload(128))
	s.Require().NoError(err)
	second, err := s.registry.RegisterReceipt(s.ctx, docID, pdfUpload(256))
	s.Require().NoError(err)

	s.Equal(first, second, "deterministic object names keep one receipt per document")
	s.Equal(1, s.objects.Len())

	doc, err := s.documents.FindByID(s.ctx, docID)
	s.Require().NoError(err)
	s.Equal(second, doc.ReceiptURL)
}

func (s *RegistrySuite) TestCertificateRequiresReceiptFirst() {
	docID := s.seedDocument(models.StatusApproved)

	_, err := s.registry.RegisterCertificate(s.ctx, docID, pdfUpload(128))
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	_, err = s.registry.RegisterReceipt(s.ctx, docID, pdfUpload(128))
	s.Require().NoError(err)

	url, err := s.registry.RegisterCertificate(s.ctx, docID, pdfUpload(128))
	s.Require().NoError(err)
	s.NotEmpty(url)
}

func (s *RegistrySuite) TestCertificateReplacementKeepsOneActive() {
	docID := s.seedDocument(models.StatusApproved)
	_, err := s.registry.RegisterReceipt(s.ctx, docID, pdfUpload(128))
	s.Require().NoError(err)

	_, err = s.registry.RegisterCertificate(s.ctx, docID, pdfUpload(128))
	s.Require().NoError(err)
	first, err := s.certificates.FindByDocument(s.ctx, docID)
	s.Require().NoError(err)

	_, err = s.registry.RegisterCertificate(s.ctx, docID, pdfUpload(256))
	s.Require().NoError(err)
	second, err := s.certificates.FindByDocument(s.ctx, docID)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID, "replacement keeps the certificate identity")
	s.Equal(2, s.objects.Len(), "one receipt object and one certificate object")
}

func (s *RegistrySuite) TestCertificateFor() {
	docID := s.seedDocument(models.StatusApproved)

	url, err := s.registry.CertificateFor(s.ctx, docID)
	s.Require().NoError(err)
	s.Empty(url)

	_, err = s.registry.RegisterReceipt(s.ctx, docID, pdfUpload(128))
	s.Require().NoError(err)
	registered, err := s.registry.RegisterCertificate(s.ctx, docID, pdfUpload(128))
	s.Require().NoError(err)

	url, err = s.registry.CertificateFor(s.ctx, docID)
	s.Require().NoError(err)
	s.Equal(registered, url)
}
