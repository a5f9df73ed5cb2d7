package models

import (
	"strings"
	"time"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
)

// StatusHistoryEntry records one lifecycle change. Immutable once appended.
type StatusHistoryEntry struct {
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the aggregate root for one application.
//
// Invariants:
//   - StatusHistory is never empty once created; its last entry's status
//     always equals Status.
//   - StatusHistory is append-only and stored oldest-first; display layers
//     sort a copy, never the stored sequence.
//   - RejectionReason is non-empty iff Status == Rejected.
//   - DistributorID, once set, is immutable from Sent onward.
//   - Version increments on every committed mutation; stores refuse writes
//     carrying a stale version.
type Document struct {
	ID            id.DocumentID `json:"document_id"`
	ApplicationID string        `json:"application_id"`
	CategoryID    string        `json:"category_id"`
	SubcategoryID string        `json:"subcategory_id"`
	UserID        id.UserID     `json:"user_id"`
	DistributorID *id.UserID    `json:"distributor_id,omitempty"`
	Status        Status        `json:"status"`
	Fields        Fields        `json:"document_fields"`
	ReceiptURL    string        `json:"receipt_url,omitempty"`

	RejectionReason       string   `json:"rejection_reason,omitempty"`
	SelectedDocumentNames []string `json:"selected_document_names,omitempty"`
	Remark                string   `json:"remark,omitempty"`

	StatusHistory []StatusHistoryEntry `json:"status_history"`
	UploadedAt    time.Time            `json:"uploaded_at"`
	Version       int64                `json:"version"`
}

// NewDocument creates a freshly submitted document in Pending with its first
// history entry.
func NewDocument(docID id.DocumentID, applicationID string, userID id.UserID, categoryID, subcategoryID string, fields Fields, now time.Time) (*Document, error) {
	if applicationID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application id cannot be empty")
	}
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owning user id is required")
	}
	return &Document{
		ID:            docID,
		ApplicationID: applicationID,
		CategoryID:    categoryID,
		SubcategoryID: subcategoryID,
		UserID:        userID,
		Status:        StatusPending,
		Fields:        fields,
		StatusHistory: []StatusHistoryEntry{{Status: StatusPending, UpdatedAt: now}},
		UploadedAt:    now,
		Version:       1,
	}, nil
}

// ApplyStatus moves the document to the new status and appends exactly one
// history entry. Callers validate the edge first; this method only maintains
// the history invariant.
func (d *Document) ApplyStatus(status Status, now time.Time) {
	d.Status = status
	d.StatusHistory = append(d.StatusHistory, StatusHistoryEntry{Status: status, UpdatedAt: now})
}

// ApplyRejection records the rejection reason and optional per-file selection
// alongside the status change.
func (d *Document) ApplyRejection(reason string, selectedDocumentNames []string, now time.Time) {
	d.RejectionReason = reason
	d.SelectedDocumentNames = selectedDocumentNames
	d.ApplyStatus(StatusRejected, now)
}

// ApplyResubmission returns a rejected document to Pending, clearing the
// rejection fields.
func (d *Document) ApplyResubmission(now time.Time) {
	d.RejectionReason = ""
	d.SelectedDocumentNames = nil
	d.ApplyStatus(StatusPending, now)
}

// ApplyAssignment binds a distributor and remark. The Pending→Approved
// transition is applied separately by the status machine.
func (d *Document) ApplyAssignment(distributorID id.UserID, remark string) {
	d.DistributorID = &distributorID
	d.Remark = remark
}

// CanReassign reports whether the distributor binding may still change.
// Re-assignment is permitted only while the document is Pending or Approved.
func (d *Document) CanReassign() error {
	switch d.Status {
	case StatusPending, StatusApproved:
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvalidTransition,
		"distributor cannot change once the document is %s", d.Status)
}

// AssignedTo reports whether the given distributor is bound to this document.
func (d *Document) AssignedTo(distributorID id.UserID) bool {
	return d.DistributorID != nil && *d.DistributorID == distributorID
}

// OwnedBy reports whether the given customer submitted this document.
func (d *Document) OwnedBy(userID id.UserID) bool {
	return d.UserID == userID
}

// LatestHistory returns the display-latest entry: maximum UpdatedAt, ties
// broken by insertion order (the later entry wins). The stored sequence is
// never re-sorted.
func (d *Document) LatestHistory() (StatusHistoryEntry, bool) {
	if len(d.StatusHistory) == 0 {
		return StatusHistoryEntry{}, false
	}
	latest := d.StatusHistory[0]
	for _, entry := range d.StatusHistory[1:] {
		if !entry.UpdatedAt.Before(latest.UpdatedAt) {
			latest = entry
		}
	}
	return latest, true
}

// HistoryNewestFirst returns a copy of the history sorted for display
// (newest first, stable for identical timestamps). The persisted order stays
// oldest-first for wire compatibility.
func (d *Document) HistoryNewestFirst() []StatusHistoryEntry {
	out := make([]StatusHistoryEntry, len(d.StatusHistory))
	copy(out, d.StatusHistory)
	// Stable reversal by walking backwards keeps insertion order as the
	// tie-break without re-sorting mutated data.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// CheckInvariants verifies the history/status coupling. Stores call this
// before committing a mutation.
func (d *Document) CheckInvariants() error {
	if len(d.StatusHistory) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "status history must not be empty")
	}
	if last := d.StatusHistory[len(d.StatusHistory)-1].Status; last != d.Status {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"last history entry %s does not match status %s", last, d.Status)
	}
	if d.Status == StatusRejected && strings.TrimSpace(d.RejectionReason) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "rejected document requires a reason")
	}
	return nil
}

// Clone returns a deep copy so in-memory stores never leak aliased slices.
func (d *Document) Clone() *Document {
	cp := *d
	if d.DistributorID != nil {
		v := *d.DistributorID
		cp.DistributorID = &v
	}
	cp.Fields = append(Fields(nil), d.Fields...)
	cp.SelectedDocumentNames = append([]string(nil), d.SelectedDocumentNames...)
	cp.StatusHistory = append([]StatusHistoryEntry(nil), d.StatusHistory...)
	return &cp
}
