// Package export bundles every registered artifact into a zip stream for
// offline audits. Fetches run concurrently with a bounded errgroup; the
// archive itself is written serially because zip writers are not concurrency
// safe. Cancelling the context aborts the whole export without a partial
// entry being flushed as complete.
package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/platform/sentinel"
	"sevagate/pkg/requestcontext"

	"sevagate/internal/workflow/models"
)

// fetchConcurrency bounds parallel object store reads.
const fetchConcurrency = 4

// DocumentLister provides the documents whose artifacts are exported.
type DocumentLister interface {
	ListAll(ctx context.Context) ([]*models.Document, error)
}

// CertificateFinder resolves the active certificate for a document.
type CertificateFinder interface {
	FindByDocument(ctx context.Context, documentID id.DocumentID) (*models.Certificate, error)
}

// ArtifactFetcher streams stored artifact bytes by object name.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// Exporter builds artifact bundles.
type Exporter struct {
	documents    DocumentLister
	certificates CertificateFinder
	fetcher      ArtifactFetcher
	logger       *slog.Logger
}

func NewExporter(documents DocumentLister, certificates CertificateFinder, fetcher ArtifactFetcher, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		documents:    documents,
		certificates: certificates,
		fetcher:      fetcher,
		logger:       logger,
	}
}

// entry is one fetched artifact ready to be written into the archive.
type entry struct {
	name string
	data []byte
}

// Export writes a zip of all receipts and certificates to w. Entries are laid
// out as <application_id>/receipt.<ext> and <application_id>/certificate.<ext>.
// The export is read-only and safe to cancel at any point.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	docs, err := e.documents.ListAll(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}

	zw := zip.NewWriter(w)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	var exported int
	for _, doc := range docs {
		for _, t := range e.targetsFor(ctx, doc) {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				item, err := e.fetch(ctx, t)
				if err != nil {
					return err
				}
				if item == nil {
					return nil
				}

				mu.Lock()
				defer mu.Unlock()
				f, err := zw.Create(item.name)
				if err != nil {
					return fmt.Errorf("create archive entry %s: %w", item.name, err)
				}
				if _, err := f.Write(item.data); err != nil {
					return fmt.Errorf("write archive entry %s: %w", item.name, err)
				}
				exported++
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize archive")
	}

	e.logger.InfoContext(ctx, "artifact export finished",
		"request_id", requestcontext.RequestID(ctx),
		"documents", len(docs),
		"entries", exported,
	)
	return nil
}

// target names one artifact to pull: the object store key and the archive
// entry name.
type target struct {
	objectName string
	entryName  string
}

func (e *Exporter) targetsFor(ctx context.Context, doc *models.Document) []target {
	var targets []target
	if doc.ReceiptURL != "" {
		ext := path.Ext(doc.ReceiptURL)
		targets = append(targets, target{
			objectName: fmt.Sprintf("receipts/%s%s", doc.ID, ext),
			entryName:  fmt.Sprintf("%s/receipt%s", doc.ApplicationID, ext),
		})
	}

	cert, err := e.certificates.FindByDocument(ctx, doc.ID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			e.logger.WarnContext(ctx, "skipping certificate during export",
				"document_id", doc.ID,
				"error", err,
			)
		}
		return targets
	}

	ext := path.Ext(cert.FileURL)
	targets = append(targets, target{
		objectName: fmt.Sprintf("certificates/%s%s", doc.ID, ext),
		entryName:  fmt.Sprintf("%s/certificate%s", doc.ApplicationID, ext),
	})
	return targets
}

func (e *Exporter) fetch(ctx context.Context, t target) (*entry, error) {
	rc, err := e.fetcher.Fetch(ctx, t.objectName)
	if err != nil {
		// A dangling URL is skipped, not fatal; the bundle notes the gap in
		// the log instead of failing the whole export.
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			e.logger.WarnContext(ctx, "artifact missing from object store",
				"object", t.objectName,
			)
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", t.objectName, err)
	}
	return &entry{name: t.entryName, data: data}, nil
}
