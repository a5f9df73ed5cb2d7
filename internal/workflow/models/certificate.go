package models

import (
	"time"

	id "sevagate/pkg/domain"
)

// Certificate is the final deliverable artifact for a document. At most one
// active certificate exists per document; re-upload replaces the row in place
// rather than appending a second one.
type Certificate struct {
	ID         id.CertificateID `json:"certificate_id"`
	DocumentID id.DocumentID    `json:"document_id"`
	FileURL    string           `json:"file_url"`
	UploadedAt time.Time        `json:"uploaded_at"`
}
