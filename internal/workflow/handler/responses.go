package handler

import (
	"sevagate/internal/workflow/models"
)

// documentResponse is the wire form of a document. History is emitted in the
// stored oldest-first order; DisplayHistory adds the newest-first view for
// clients that render a timeline.
type documentResponse struct {
	*models.Document
	DisplayHistory []models.StatusHistoryEntry `json:"display_history,omitempty"`
}

func newDocumentResponse(doc *models.Document) documentResponse {
	return documentResponse{
		Document:       doc,
		DisplayHistory: doc.HistoryNewestFirst(),
	}
}

func newDocumentListResponse(docs []*models.Document) []documentResponse {
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, newDocumentResponse(doc))
	}
	return out
}

// uploadResponse reports the canonical URL of a registered artifact.
type uploadResponse struct {
	URL string `json:"url"`
}
