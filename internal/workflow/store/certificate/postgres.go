package certificate

import (
	"context"
	"database/sql"
	"fmt"

	id "sevagate/pkg/domain"
	"sevagate/pkg/platform/sentinel"

	"sevagate/internal/workflow/models"
)

// PostgresStore persists certificates in PostgreSQL. A unique constraint on
// document_id plus ON CONFLICT DO UPDATE gives atomic replace-not-append
// semantics without a separate existence check.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, cert *models.Certificate) error {
	query := `
		INSERT INTO certificates (certificate_id, document_id, file_url, uploaded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id) DO UPDATE SET
			file_url = EXCLUDED.file_url,
			uploaded_at = EXCLUDED.uploaded_at
	`
	_, err := s.db.ExecContext(ctx, query,
		cert.ID.String(), cert.DocumentID.String(), cert.FileURL, cert.UploadedAt)
	if err != nil {
		return fmt.Errorf("upsert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByDocument(ctx context.Context, documentID id.DocumentID) (*models.Certificate, error) {
	query := `
		SELECT certificate_id, document_id, file_url, uploaded_at
		FROM certificates
		WHERE document_id = $1
	`
	var (
		cert   models.Certificate
		certID string
		docID  string
	)
	err := s.db.QueryRowContext(ctx, query, documentID.String()).
		Scan(&certID, &docID, &cert.FileURL, &cert.UploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}

	parsedCertID, err := id.ParseCertificateID(certID)
	if err != nil {
		return nil, err
	}
	cert.ID = parsedCertID

	parsedDocID, err := id.ParseDocumentID(docID)
	if err != nil {
		return nil, err
	}
	cert.DocumentID = parsedDocID
	return &cert, nil
}

func (s *PostgresStore) DeleteByDocument(ctx context.Context, documentID id.DocumentID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM certificates WHERE document_id = $1`, documentID.String())
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	return nil
}
