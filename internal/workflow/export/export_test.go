package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "sevagate/pkg/domain"

	"sevagate/internal/artifact"
	"sevagate/internal/workflow/models"
	certstore "sevagate/internal/workflow/store/certificate"
	docstore "sevagate/internal/workflow/store/document"
)

type ExportSuite struct {
	suite.Suite

	ctx          context.Context
	documents    *docstore.InMemory
	certificates *certstore.InMemory
	objects      *artifact.MemoryObjectStore
	registry     *artifact.Registry
	exporter     *Exporter
}

func TestExportSuite(t *testing.T) {
	suite.Run(t, new(ExportSuite))
}

func (s *ExportSuite) SetupTest() {
	s.ctx = context.Background()
	s.documents = docstore.NewInMemory()
	s.certificates = certstore.NewInMemory()
	s.objects = artifact.NewMemoryObjectStore("")
	s.registry = artifact.NewRegistry(s.documents, s.certificates, s.objects, nil)
	s.exporter = NewExporter(s.documents, s.certificates, s.objects, nil)
}

func pdfUpload(size int64) artifact.Upload {
	return artifact.Upload{
		Filename:    "artifact.pdf",
		ContentType: "application/pdf",
		Size:        size,
		Content:     bytes.NewReader(bytes.Repeat([]byte{0x25}, int(size))),
	}
}

// seedFulfilled creates an approved document carrying both artifacts.
func (s *ExportSuite) seedFulfilled(n int) *models.Document {
	docID := id.DocumentID(uuid.New())
	doc, err := models.NewDocument(docID, fmt.Sprintf("APP-20260901-%08d", n), id.UserID(uuid.New()),
		"cat", "sub", nil, time.Now())
	s.Require().NoError(err)
	doc.ApplyStatus(models.StatusApproved, time.Now())
	s.Require().NoError(s.documents.Create(s.ctx, doc))

	_, err = s.registry.RegisterReceipt(s.ctx, docID, pdfUpload(64))
	s.Require().NoError(err)
	_, err = s.registry.RegisterCertificate(s.ctx, docID, pdfUpload(64))
	s.Require().NoError(err)
	return doc
}

func readArchive(t *testing.T, buf *bytes.Buffer) map[string]int {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	entries := make(map[string]int, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = int(f.UncompressedSize64)
	}
	return entries
}

func (s *ExportSuite) TestExportBundlesAllArtifacts() {
	first := s.seedFulfilled(1)
	second := s.seedFulfilled(2)

	var buf bytes.Buffer
	s.Require().NoError(s.exporter.Export(s.ctx, &buf))

	entries := readArchive(s.T(), &buf)
	s.Len(entries, 4)
	s.Contains(entries, first.ApplicationID+"/receipt.pdf")
	s.Contains(entries, first.ApplicationID+"/certificate.pdf")
	s.Contains(entries, second.ApplicationID+"/receipt.pdf")
	s.Equal(64, entries[first.ApplicationID+"/receipt.pdf"])
}

func (s *ExportSuite) TestExportSkipsDocumentsWithoutArtifacts() {
	docID := id.DocumentID(uuid.New())
	doc, err := models.NewDocument(docID, "APP-20260901-BARE0001", id.UserID(uuid.New()),
		"cat", "sub", nil, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.documents.Create(s.ctx, doc))

	fulfilled := s.seedFulfilled(3)

	var buf bytes.Buffer
	s.Require().NoError(s.exporter.Export(s.ctx, &buf))

	entries := readArchive(s.T(), &buf)
	s.Len(entries, 2)
	s.Contains(entries, fulfilled.ApplicationID+"/receipt.pdf")
}

func (s *ExportSuite) TestExportEmpty() {
	var buf bytes.Buffer
	s.Require().NoError(s.exporter.Export(s.ctx, &buf))

	entries := readArchive(s.T(), &buf)
	s.Empty(entries)
}

func (s *ExportSuite) TestExportCancelled() {
	for i := 0; i < 8; i++ {
		s.seedFulfilled(10 + i)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	var buf bytes.Buffer
	err := s.exporter.Export(ctx, &buf)
	s.Error(err, "a cancelled export must not report success")
}
