package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	audit "sevagate/pkg/platform/audit"
	"sevagate/pkg/requestcontext"

	"sevagate/internal/workflow/models"
)

// TransitionPayload carries the optional inputs a transition may require.
type TransitionPayload struct {
	Reason                string
	Remark                string
	SelectedDocumentNames []string
}

// edge describes one permitted move in the document lifecycle. Preconditions
// run inside the store's Execute guard, so a refused edge never mutates.
type edge struct {
	roles  []id.Role
	from   []models.Status
	action audit.Action

	// precondition may be nil. certificateURL is resolved before the guard
	// is taken; it is only consulted by the Uploaded edge.
	precondition func(doc *models.Document, payload TransitionPayload, certificateURL string) error

	// apply defaults to a plain ApplyStatus when nil.
	apply func(doc *models.Document, payload TransitionPayload, now time.Time)
}

// edges is the full transition table, keyed by target status.
var edges = map[models.Status]edge{
	models.StatusApproved: {
		roles:  []id.Role{id.RoleAdmin},
		from:   []models.Status{models.StatusPending},
		action: audit.EventDocumentApproved,
		precondition: func(doc *models.Document, _ TransitionPayload, _ string) error {
			if doc.DistributorID == nil {
				return dErrors.New(dErrors.CodePreconditionFailed, "approval requires an assigned distributor")
			}
			return nil
		},
	},
	models.StatusRejected: {
		roles:  []id.Role{id.RoleAdmin, id.RoleDistributor},
		from:   []models.Status{models.StatusPending, models.StatusApproved},
		action: audit.EventDocumentRejected,
		precondition: func(_ *models.Document, payload TransitionPayload, _ string) error {
			if strings.TrimSpace(payload.Reason) == "" {
				return dErrors.New(dErrors.CodePreconditionFailed, "rejection requires a reason")
			}
			return nil
		},
		apply: func(doc *models.Document, payload TransitionPayload, now time.Time) {
			doc.ApplyRejection(payload.Reason, payload.SelectedDocumentNames, now)
		},
	},
	models.StatusSent: {
		roles:  []id.Role{id.RoleDistributor},
		from:   []models.Status{models.StatusApproved},
		action: audit.EventDocumentSent,
		precondition: func(doc *models.Document, _ TransitionPayload, _ string) error {
			if doc.ReceiptURL == "" {
				return dErrors.New(dErrors.CodePreconditionFailed, "a receipt must be registered before sending")
			}
			return nil
		},
	},
	models.StatusUploaded: {
		roles:  []id.Role{id.RoleDistributor},
		from:   []models.Status{models.StatusApproved, models.StatusSent},
		action: audit.EventDocumentUploaded,
		precondition: func(_ *models.Document, _ TransitionPayload, certificateURL string) error {
			if certificateURL == "" {
				return dErrors.New(dErrors.CodePreconditionFailed, "a certificate must be registered first")
			}
			return nil
		},
	},
	models.StatusCompleted: {
		roles:  []id.Role{id.RoleAdmin, id.RoleCustomer},
		from:   []models.Status{models.StatusSent, models.StatusUploaded},
		action: audit.EventDocumentCompleted,
	},
	models.StatusReceived: {
		roles:  []id.Role{id.RoleCustomer},
		from:   []models.Status{models.StatusCompleted},
		action: audit.EventDocumentReceived,
	},
	// Resubmission: the owner returns a rejected application to the queue.
	models.StatusPending: {
		roles:  []id.Role{id.RoleCustomer},
		from:   []models.Status{models.StatusRejected},
		action: audit.EventDocumentResubmitted,
		apply: func(doc *models.Document, _ TransitionPayload, now time.Time) {
			doc.ApplyResubmission(now)
		},
	},
}

func (e edge) allowsRole(role id.Role) bool {
	for _, r := range e.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (e edge) allowsFrom(status models.Status) bool {
	for _, s := range e.from {
		if s == status {
			return true
		}
	}
	return false
}

// actorMayTouch enforces per-role document scoping for mutations: a
// distributor may only act on assignments, a customer only on own documents.
func actorMayTouch(actor requestcontext.Principal, doc *models.Document) error {
	switch actor.Role {
	case id.RoleAdmin:
		return nil
	case id.RoleDistributor:
		if doc.AssignedTo(actor.UserID) {
			return nil
		}
	case id.RoleCustomer:
		if doc.OwnedBy(actor.UserID) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "document is outside your scope")
}

// Transition moves a document to the target status. The edge's role set,
// from-set, and precondition are all checked inside the store's Execute guard;
// a refused transition never mutates and a lost race surfaces as Conflict.
func (s *Service) Transition(ctx context.Context, documentID id.DocumentID, target models.Status, payload TransitionPayload) (*models.Document, error) {
	ctx, span := tracer.Start(ctx, "workflow.Transition")
	defer span.End()

	start := time.Now()
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", target)
	}

	e, ok := edges[target]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "no transition leads to %s", target)
	}

	// The certificate check reads a separate store, so resolve it before
	// taking the document guard.
	var certificateURL string
	if target == models.StatusUploaded {
		certificateURL, err = s.registry.CertificateFor(ctx, documentID)
		if err != nil {
			return nil, err
		}
	}

	var from models.Status
	doc, err := s.documents.Execute(ctx, documentID,
		func(doc *models.Document) error {
			from = doc.Status
			if err := actorMayTouch(actor, doc); err != nil {
				return err
			}
			if !e.allowsRole(actor.Role) {
				return dErrors.Newf(dErrors.CodeForbidden, "role %s may not move a document to %s", actor.Role, target)
			}
			if !e.allowsFrom(doc.Status) {
				return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot move from %s to %s", doc.Status, target)
			}
			if e.precondition != nil {
				return e.precondition(doc, payload, certificateURL)
			}
			return nil
		},
		func(doc *models.Document) {
			now := requestcontext.Now(ctx)
			if e.apply != nil {
				e.apply(doc, payload, now)
				return
			}
			doc.ApplyStatus(target, now)
		},
	)
	if err != nil {
		err = translateStoreErr(err)
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			s.emit(ctx, audit.CategorySecurity, audit.EventTransitionDenied, documentID, string(from), string(target), err.Error())
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, documentID)
	s.metrics.IncrementTransition(string(from), string(target), string(actor.Role))
	s.metrics.ObserveTransitionLatency(time.Since(start))
	s.emit(ctx, audit.CategoryWorkflow, e.action, documentID, string(from), string(target), payload.Reason)
	s.logger.InfoContext(ctx, "document transitioned",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", documentID,
		"from", from,
		"to", target,
		"role", actor.Role,
	)
	return doc, nil
}

// Get returns one document, scoped to the caller. The read path reconciles
// the status against registered artifacts: when the second call of the upload
// sequence never landed, the promotion happens here instead.
func (s *Service) Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	ctx, span := tracer.Start(ctx, "workflow.Get")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if doc := s.cache.Get(ctx, documentID); doc != nil {
		if err := canView(actor, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if err := canView(actor, doc); err != nil {
		return nil, err
	}

	doc, err = s.reconcile(ctx, doc)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, doc)
	return doc, nil
}

// reconcile promotes a document whose artifacts ran ahead of its status:
// receipt present while Approved means Sent, certificate present while
// Approved or Sent means Uploaded. Promotion goes through the same Execute
// guard as any transition, so concurrent writers stay serialized.
func (s *Service) reconcile(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if doc.Status != models.StatusApproved && doc.Status != models.StatusSent {
		return doc, nil
	}

	certificateURL, err := s.registry.CertificateFor(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	target := doc.Status
	if doc.Status == models.StatusApproved && doc.ReceiptURL != "" {
		target = models.StatusSent
	}
	if certificateURL != "" {
		target = models.StatusUploaded
	}
	if target == doc.Status {
		return doc, nil
	}

	from := doc.Status
	reconciled, err := s.documents.Execute(ctx, doc.ID,
		func(d *models.Document) error {
			// A concurrent writer may have moved the document already.
			if d.Status != from {
				return dErrors.New(dErrors.CodeConflict, "document changed during reconciliation")
			}
			return nil
		},
		func(d *models.Document) {
			now := requestcontext.Now(ctx)
			if from == models.StatusApproved && d.ReceiptURL != "" {
				d.ApplyStatus(models.StatusSent, now)
			}
			if certificateURL != "" && d.Status != models.StatusUploaded {
				d.ApplyStatus(models.StatusUploaded, now)
			}
		},
	)
	if err != nil {
		// Losing the race means someone else advanced the document; serve
		// the fresh state rather than failing the read.
		if dErrors.HasCode(translateStoreErr(err), dErrors.CodeConflict) {
			fresh, ferr := s.documents.FindByID(ctx, doc.ID)
			if ferr != nil {
				return nil, translateStoreErr(ferr)
			}
			return fresh, nil
		}
		return nil, translateStoreErr(err)
	}

	s.cache.Invalidate(ctx, doc.ID)
	s.emit(ctx, audit.CategoryOperations, audit.EventStatusReconciled, doc.ID, string(from), string(reconciled.Status), "")
	s.logger.InfoContext(ctx, "document status reconciled from artifacts",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", doc.ID,
		"from", from,
		"to", reconciled.Status,
	)
	return reconciled, nil
}

// CreateDocument registers a fresh application for the calling customer.
func (s *Service) CreateDocument(ctx context.Context, categoryID, subcategoryID string, fields models.Fields) (*models.Document, error) {
	ctx, span := tracer.Start(ctx, "workflow.CreateDocument")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != id.RoleCustomer {
		return nil, dErrors.New(dErrors.CodeForbidden, "only customers submit applications")
	}
	if categoryID == "" || subcategoryID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "category and subcategory are required")
	}

	now := requestcontext.Now(ctx)
	doc, err := models.NewDocument(
		id.DocumentID(uuid.New()),
		newApplicationID(now),
		actor.UserID,
		categoryID, subcategoryID,
		fields,
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, translateStoreErr(err)
	}

	s.cache.Set(ctx, doc)
	s.emit(ctx, audit.CategoryWorkflow, audit.EventDocumentSubmitted, doc.ID, "", string(models.StatusPending), "")
	s.logger.InfoContext(ctx, "document submitted",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", doc.ID,
		"application_id", doc.ApplicationID,
	)
	return doc, nil
}

// List returns the documents visible to the caller: own submissions for
// customers, assignments for distributors, everything for admins and
// employees.
func (s *Service) List(ctx context.Context) ([]*models.Document, error) {
	ctx, span := tracer.Start(ctx, "workflow.List")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	var (
		docs []*models.Document
		serr error
	)
	switch actor.Role {
	case id.RoleCustomer:
		docs, serr = s.documents.ListByUser(ctx, actor.UserID)
	case id.RoleDistributor:
		docs, serr = s.documents.ListByDistributor(ctx, actor.UserID)
	case id.RoleAdmin, id.RoleEmployee:
		docs, serr = s.documents.ListAll(ctx)
	default:
		return nil, dErrors.Newf(dErrors.CodeForbidden, "role %s has no document view", actor.Role)
	}
	return docs, translateStoreErr(serr)
}

// History returns a document's status history in display order, newest first.
// The persisted order stays oldest-first.
func (s *Service) History(ctx context.Context, documentID id.DocumentID) ([]models.StatusHistoryEntry, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return doc.HistoryNewestFirst(), nil
}

// newApplicationID builds the human-readable application number, e.g.
// "APP-20260901-AB12CD34".
func newApplicationID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("APP-%s-%s", now.Format("20060102"), suffix)
}
