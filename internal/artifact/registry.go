package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/platform/sentinel"
	"sevagate/pkg/requestcontext"

	"sevagate/internal/workflow/models"
)

// ObjectStore holds artifact bytes outside the service. Put must overwrite an
// existing object of the same name so retried uploads stay idempotent.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, upload Upload) (url string, err error)
}

// DocumentStore is the slice of the document store the registries need.
type DocumentStore interface {
	FindByID(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	Execute(ctx context.Context, documentID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error)
}

// CertificateStore is the slice of the certificate store the registries need.
type CertificateStore interface {
	Upsert(ctx context.Context, cert *models.Certificate) error
	FindByDocument(ctx context.Context, documentID id.DocumentID) (*models.Certificate, error)
}

// Registry implements both the receipt and certificate registries. One active
// artifact of each kind exists per document; re-registration replaces it.
type Registry struct {
	documents    DocumentStore
	certificates CertificateStore
	objects      ObjectStore
	logger       *slog.Logger
}

func NewRegistry(documents DocumentStore, certificates CertificateStore, objects ObjectStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		documents:    documents,
		certificates: certificates,
		objects:      objects,
		logger:       logger,
	}
}

// RegisterReceipt validates and stores a receipt for the document, recording
// the canonical URL on the document. The document's status is not touched;
// the Sent transition is a separate, explicit step.
func (r *Registry) RegisterReceipt(ctx context.Context, documentID id.DocumentID, upload Upload) (string, error) {
	if err := upload.Validate(); err != nil {
		return "", err
	}

	doc, err := r.documents.FindByID(ctx, documentID)
	if err != nil {
		return "", translateStoreErr(err)
	}
	if doc.Status == models.StatusPending || doc.Status == models.StatusRejected {
		return "", dErrors.Newf(dErrors.CodePreconditionFailed,
			"receipts require an approved document, status is %s", doc.Status)
	}

	// Deterministic object name: a retried or replacing upload overwrites
	// the previous object instead of appending a new one.
	objectName := fmt.Sprintf("receipts/%s%s", documentID, upload.extension())
	url, err := r.objects.Put(ctx, objectName, upload)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store receipt")
	}

	_, err = r.documents.Execute(ctx, documentID,
		func(*models.Document) error { return nil },
		func(d *models.Document) { d.ReceiptURL = url },
	)
	if err != nil {
		return "", translateStoreErr(err)
	}

	r.logger.InfoContext(ctx, "receipt registered",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", documentID,
		"url", url,
	)
	return url, nil
}

// RegisterCertificate validates and stores a certificate, replacing any prior
// one for the document. A receipt must exist first; the ordering is part of
// the workflow contract.
func (r *Registry) RegisterCertificate(ctx context.Context, documentID id.DocumentID, upload Upload) (string, error) {
	if err := upload.Validate(); err != nil {
		return "", err
	}

	doc, err := r.documents.FindByID(ctx, documentID)
	if err != nil {
		return "", translateStoreErr(err)
	}
	if doc.Status == models.StatusPending || doc.Status == models.StatusRejected {
		return "", dErrors.Newf(dErrors.CodePreconditionFailed,
			"certificates require an approved document, status is %s", doc.Status)
	}
	if doc.ReceiptURL == "" {
		return "", dErrors.New(dErrors.CodePreconditionFailed,
			"a receipt must be registered before the certificate")
	}

	objectName := fmt.Sprintf("certificates/%s%s", documentID, upload.extension())
	url, err := r.objects.Put(ctx, objectName, upload)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
	}

	cert := &models.Certificate{
		ID:         id.CertificateID(uuid.New()),
		DocumentID: documentID,
		FileURL:    url,
		UploadedAt: requestcontext.Now(ctx),
	}
	if err := r.certificates.Upsert(ctx, cert); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record certificate")
	}

	r.logger.InfoContext(ctx, "certificate registered",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", documentID,
		"url", url,
	)
	return url, nil
}

// CertificateFor returns the active certificate URL for a document, or ""
// when none exists.
func (r *Registry) CertificateFor(ctx context.Context, documentID id.DocumentID) (string, error) {
	cert, err := r.certificates.FindByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up certificate")
	}
	return cert.FileURL, nil
}

func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "document was modified concurrently")
	default:
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "document store failure")
	}
}
