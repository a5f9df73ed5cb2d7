package models

import (
	"strings"
	"time"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
)

// ErrorType names the artifact a customer contests after completion.
type ErrorType string

const (
	ErrorTypeCertificate ErrorType = "certificate"
	ErrorTypeReceipt     ErrorType = "receipt"
	ErrorTypePayment     ErrorType = "payment"
)

// Valid reports whether the error type is known.
func (t ErrorType) Valid() bool {
	switch t {
	case ErrorTypeCertificate, ErrorTypeReceipt, ErrorTypePayment:
		return true
	}
	return false
}

// ParseErrorType validates an error type from its wire form.
func ParseErrorType(s string) (ErrorType, error) {
	t := ErrorType(s)
	if !t.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown error type %q", s)
	}
	return t, nil
}

// RequestStatus is the error-correction sub-workflow state, independent of the
// parent document's status.
type RequestStatus string

const (
	RequestPending             RequestStatus = "Pending"
	RequestUploaded            RequestStatus = "Uploaded"
	RequestReceiptUploaded     RequestStatus = "Receipt Uploaded"
	RequestCompleted           RequestStatus = "Completed"
	RequestDistributorRejected RequestStatus = "Distributor Rejected"
)

// Valid reports whether the request status is known.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestUploaded, RequestReceiptUploaded,
		RequestCompleted, RequestDistributorRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestDistributorRejected
}

// Resolved reports whether a distributor has re-uploaded the contested
// artifact and the request awaits admin closure.
func (s RequestStatus) Resolved() bool {
	return s == RequestUploaded || s == RequestReceiptUploaded
}

// ParseRequestStatus validates a request status from its wire form.
func ParseRequestStatus(v string) (RequestStatus, error) {
	s := RequestStatus(v)
	if !s.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown request status %q", v)
	}
	return s, nil
}

// ErrorRequest is a post-completion correction ticket raised by a customer
// against a delivered certificate, receipt, or payment.
//
// Lifecycle: Pending → {Uploaded | Receipt Uploaded} → Completed, or
// Pending → Distributor Rejected (terminal, reasoned). Resolving a request
// replaces the parent document's artifact but never mutates the parent's own
// status.
type ErrorRequest struct {
	ID         id.ErrorRequestID `json:"request_id"`
	DocumentID id.DocumentID     `json:"document_id"`
	// ApplicationID is denormalized from the parent document for display.
	ApplicationID   string        `json:"application_id"`
	ErrorType       ErrorType     `json:"error_type"`
	Description     string        `json:"request_description"`
	EvidenceURL     string        `json:"error_document"`
	Status          RequestStatus `json:"request_status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Version         int64         `json:"version"`
}

// NewErrorRequest creates a pending correction ticket.
func NewErrorRequest(reqID id.ErrorRequestID, doc *Document, errorType ErrorType, description, evidenceURL string, now time.Time) (*ErrorRequest, error) {
	if !errorType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown error type %q", errorType)
	}
	if strings.TrimSpace(description) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "request description is required")
	}
	if !doc.Status.Closed() {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"error requests require a completed document, parent is %s", doc.Status)
	}
	return &ErrorRequest{
		ID:            reqID,
		DocumentID:    doc.ID,
		ApplicationID: doc.ApplicationID,
		ErrorType:     errorType,
		Description:   description,
		EvidenceURL:   evidenceURL,
		Status:        RequestPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}, nil
}

// CanReject checks the Pending → Distributor Rejected edge.
func (r *ErrorRequest) CanReject() error {
	if r.Status != RequestPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"only pending requests can be rejected, request is %s", r.Status)
	}
	return nil
}

// ApplyRejection marks the request rejected with the mandatory reason.
func (r *ErrorRequest) ApplyRejection(reason string, now time.Time) {
	r.Status = RequestDistributorRejected
	r.RejectionReason = reason
	r.UpdatedAt = now
}

// CanResolve checks the Pending → {Uploaded | Receipt Uploaded} edge.
func (r *ErrorRequest) CanResolve() error {
	if r.Status != RequestPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"only pending requests can be resolved, request is %s", r.Status)
	}
	return nil
}

// ApplyResolution marks the request resolved; certificate corrections land in
// Uploaded, receipt and payment corrections in Receipt Uploaded.
func (r *ErrorRequest) ApplyResolution(now time.Time) {
	if r.ErrorType == ErrorTypeCertificate {
		r.Status = RequestUploaded
	} else {
		r.Status = RequestReceiptUploaded
	}
	r.UpdatedAt = now
}

// CanComplete checks the resolved → Completed edge.
func (r *ErrorRequest) CanComplete() error {
	if !r.Status.Resolved() {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"only resolved requests can be completed, request is %s", r.Status)
	}
	return nil
}

// ApplyCompletion closes a resolved request.
func (r *ErrorRequest) ApplyCompletion(now time.Time) {
	r.Status = RequestCompleted
	r.UpdatedAt = now
}

// Clone returns a copy so in-memory stores never leak shared state.
func (r *ErrorRequest) Clone() *ErrorRequest {
	cp := *r
	return &cp
}
