package handler

import (
	"strings"

	dErrors "sevagate/pkg/domain-errors"

	"sevagate/internal/workflow/models"
)

// CreateDocumentRequest submits a new application.
type CreateDocumentRequest struct {
	CategoryID     string        `json:"category_id"`
	SubcategoryID  string        `json:"subcategory_id"`
	DocumentFields models.Fields `json:"document_fields"`
}

func (r *CreateDocumentRequest) Validate() error {
	if strings.TrimSpace(r.CategoryID) == "" {
		return dErrors.New(dErrors.CodeValidation, "category_id is required")
	}
	if strings.TrimSpace(r.SubcategoryID) == "" {
		return dErrors.New(dErrors.CodeValidation, "subcategory_id is required")
	}
	return nil
}

// TransitionRequest asks the status machine for one move.
type TransitionRequest struct {
	TargetStatus          string   `json:"targetStatus"`
	Reason                string   `json:"reason,omitempty"`
	Remark                string   `json:"remark,omitempty"`
	SelectedDocumentNames []string `json:"selectedDocumentNames,omitempty"`
}

func (r *TransitionRequest) Validate() error {
	if strings.TrimSpace(r.TargetStatus) == "" {
		return dErrors.New(dErrors.CodeValidation, "targetStatus is required")
	}
	return nil
}

// AssignRequest binds a distributor to a document. Reviewed mirrors the
// attachment checklist; empty means no attachments.
type AssignRequest struct {
	DistributorID string `json:"distributorId"`
	Remark        string `json:"remark,omitempty"`
	Reviewed      []bool `json:"reviewed,omitempty"`
}

func (r *AssignRequest) Validate() error {
	if strings.TrimSpace(r.DistributorID) == "" {
		return dErrors.New(dErrors.CodeValidation, "distributorId is required")
	}
	return nil
}

// CreateErrorRequest opens a correction ticket.
type CreateErrorRequest struct {
	DocumentID  string `json:"documentId"`
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	EvidenceURL string `json:"evidenceUrl,omitempty"`
}

func (r *CreateErrorRequest) Validate() error {
	if strings.TrimSpace(r.DocumentID) == "" {
		return dErrors.New(dErrors.CodeValidation, "documentId is required")
	}
	if strings.TrimSpace(r.ErrorType) == "" {
		return dErrors.New(dErrors.CodeValidation, "errorType is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return dErrors.New(dErrors.CodeValidation, "description is required")
	}
	return nil
}

// UpdateErrorRequestStatusRequest closes a ticket: a distributor rejects it
// with a reason, an admin completes a resolved one.
type UpdateErrorRequestStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (r *UpdateErrorRequestStatusRequest) Validate() error {
	if strings.TrimSpace(r.Status) == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}
