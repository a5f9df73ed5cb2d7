package audit

import (
	"context"
	"time"

	id "sevagate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This enables
// different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryWorkflow covers document lifecycle changes with evidentiary
	// significance: approvals, rejections, artifact registrations, closures.
	CategoryWorkflow EventCategory = "workflow"

	// CategorySecurity covers authorization failures and role violations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine reads and exports useful for
	// debugging; these can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// DocumentID scopes the event to a document application. Zero for
	// events that concern no particular document.
	DocumentID id.DocumentID `json:"document_id"`
	// ActorID is the principal who performed the action.
	ActorID   id.UserID `json:"actor_id"`
	ActorRole id.Role   `json:"actor_role"`
	Action    string    `json:"action"`
	// FromStatus/ToStatus record the transition edge for lifecycle events.
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Reason     string `json:"reason,omitempty"`
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

// Action names. Stable identifiers consumed by downstream pipelines; never
// rename without a migration plan.
type Action string

const (
	EventDocumentSubmitted     Action = "document_submitted"
	EventDocumentResubmitted   Action = "document_resubmitted"
	EventDistributorAssigned   Action = "distributor_assigned"
	EventDocumentApproved      Action = "document_approved"
	EventDocumentRejected      Action = "document_rejected"
	EventReceiptRegistered     Action = "receipt_registered"
	EventCertificateRegistered Action = "certificate_registered"
	EventDocumentSent          Action = "document_sent"
	EventDocumentUploaded      Action = "document_uploaded"
	EventDocumentCompleted     Action = "document_completed"
	EventDocumentReceived      Action = "document_received"
	EventStatusReconciled      Action = "status_reconciled"
	EventTransitionDenied      Action = "transition_denied"
	EventErrorRequestCreated   Action = "error_request_created"
	EventErrorRequestRejected  Action = "error_request_rejected"
	EventErrorRequestResolved  Action = "error_request_resolved"
	EventErrorRequestCompleted Action = "error_request_completed"
)

// Store persists audit events and answers per-document queries.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDocument(ctx context.Context, documentID id.DocumentID) ([]Event, error)
}

// Sink receives a copy of every event but is never queried. Message brokers
// and SIEM forwarders implement this half of Store.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
