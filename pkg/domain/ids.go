// Package domain defines the typed identifiers shared across the workflow.
//
// Each ID is a distinct named type over uuid.UUID so the compiler rejects
// cross-assignment (a DocumentID can never be passed where a UserID is
// expected). Parse helpers enforce the invariant that IDs entering the system
// at trust boundaries are valid, non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "sevagate/pkg/domain-errors"
)

type (
	// DocumentID identifies a document application.
	DocumentID uuid.UUID
	// UserID identifies any principal (customer, distributor, employee, admin).
	UserID uuid.UUID
	// CertificateID identifies a certificate artifact row.
	CertificateID uuid.UUID
	// ErrorRequestID identifies a post-completion error-correction request.
	ErrorRequestID uuid.UUID
)

func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id CertificateID) String() string  { return uuid.UUID(id).String() }
func (id ErrorRequestID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the ID is the nil UUID.
func (id DocumentID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ErrorRequestID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// ParseDocumentID parses and validates a document ID from its string form.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document id")
	return DocumentID(u), err
}

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseCertificateID parses and validates a certificate ID from its string form.
func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s, "certificate id")
	return CertificateID(u), err
}

// ParseErrorRequestID parses and validates an error request ID from its string form.
func ParseErrorRequestID(s string) (ErrorRequestID, error) {
	u, err := parseUUID(s, "error request id")
	return ErrorRequestID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, what+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}
