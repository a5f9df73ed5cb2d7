package models

import dErrors "sevagate/pkg/domain-errors"

// Status is the document application lifecycle state. Values are the wire and
// storage representation; consumers compare against these constants, never
// free-form strings.
type Status string

const (
	// StatusPending is the initial state after submission (and after a
	// customer resubmits a rejected application).
	StatusPending Status = "Pending"
	// StatusApproved means an admin bound a distributor to the document.
	StatusApproved Status = "Approved"
	// StatusRejected is reached from Pending/Approved with a mandatory reason.
	StatusRejected Status = "Rejected"
	// StatusSent means the distributor registered the payment receipt.
	StatusSent Status = "Sent"
	// StatusUploaded means the distributor registered the certificate.
	StatusUploaded Status = "Uploaded"
	// StatusCompleted closes the main flow.
	StatusCompleted Status = "Completed"
	// StatusReceived is the terminal variant of Completed reached when the
	// customer acknowledges delivery.
	StatusReceived Status = "Received"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSent,
		StatusUploaded, StatusCompleted, StatusReceived:
		return true
	}
	return false
}

// Closed reports whether the document has finished the main flow. Only closed
// documents accept error-correction requests.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusReceived
}

// ParseStatus validates a status from its wire form.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
	}
	return st, nil
}
