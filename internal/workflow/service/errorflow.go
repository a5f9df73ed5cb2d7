package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	audit "sevagate/pkg/platform/audit"
	"sevagate/pkg/requestcontext"

	"sevagate/internal/artifact"
	"sevagate/internal/workflow/models"
)

// CreateErrorRequest opens a correction ticket against a completed document.
// Customer-only and owner-only; a document still in flight is contested by
// rejecting the transition, not by a ticket.
func (s *Service) CreateErrorRequest(ctx context.Context, documentID id.DocumentID, errorType models.ErrorType, description, evidenceURL string) (*models.ErrorRequest, error) {
	ctx, span := tracer.Start(ctx, "workflow.CreateErrorRequest")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != id.RoleCustomer {
		return nil, dErrors.New(dErrors.CodeForbidden, "only customers raise error requests")
	}

	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !doc.OwnedBy(actor.UserID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "document is outside your scope")
	}

	req, err := models.NewErrorRequest(
		id.ErrorRequestID(uuid.New()),
		doc, errorType, description, evidenceURL,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, translateStoreErr(err)
	}

	s.metrics.IncrementErrorRequest("created")
	s.emit(ctx, audit.CategoryWorkflow, audit.EventErrorRequestCreated, documentID, "", string(models.RequestPending), description)
	s.logger.InfoContext(ctx, "error request created",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", documentID,
		"error_request_id", req.ID,
		"error_type", errorType,
	)
	return req, nil
}

// RejectErrorRequest closes a pending ticket as Distributor Rejected. Only
// the distributor assigned to the parent document may reject, and a reason is
// mandatory.
func (s *Service) RejectErrorRequest(ctx context.Context, requestID id.ErrorRequestID, reason string) (*models.ErrorRequest, error) {
	ctx, span := tracer.Start(ctx, "workflow.RejectErrorRequest")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != id.RoleDistributor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the assigned distributor rejects error requests")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a rejection reason is required")
	}

	req, err := s.guardAssignedDistributor(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	updated, err := s.requests.Execute(ctx, requestID,
		func(r *models.ErrorRequest) error { return r.CanReject() },
		func(r *models.ErrorRequest) { r.ApplyRejection(reason, requestcontext.Now(ctx)) },
	)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	s.metrics.IncrementErrorRequest("rejected")
	s.emit(ctx, audit.CategoryWorkflow, audit.EventErrorRequestRejected, req.DocumentID,
		string(models.RequestPending), string(models.RequestDistributorRejected), reason)
	return updated, nil
}

// ResolveErrorRequest re-uploads the contested artifact through the relevant
// registry and marks the ticket resolved. The parent document's status is
// never touched; only its artifacts change.
func (s *Service) ResolveErrorRequest(ctx context.Context, requestID id.ErrorRequestID, upload artifact.Upload) (*models.ErrorRequest, error) {
	ctx, span := tracer.Start(ctx, "workflow.ResolveErrorRequest")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != id.RoleDistributor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the assigned distributor resolves error requests")
	}

	req, err := s.guardAssignedDistributor(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.CanResolve(); err != nil {
		return nil, err
	}

	// Certificate complaints replace the certificate; receipt and payment
	// complaints replace the receipt.
	switch req.ErrorType {
	case models.ErrorTypeCertificate:
		_, err = s.registry.RegisterCertificate(ctx, req.DocumentID, upload)
	default:
		_, err = s.registry.RegisterReceipt(ctx, req.DocumentID, upload)
	}
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, req.DocumentID)

	updated, err := s.requests.Execute(ctx, requestID,
		func(r *models.ErrorRequest) error { return r.CanResolve() },
		func(r *models.ErrorRequest) { r.ApplyResolution(requestcontext.Now(ctx)) },
	)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	s.metrics.IncrementErrorRequest("resolved")
	s.emit(ctx, audit.CategoryWorkflow, audit.EventErrorRequestResolved, req.DocumentID,
		string(models.RequestPending), string(updated.Status), "")
	s.logger.InfoContext(ctx, "error request resolved",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", req.DocumentID,
		"error_request_id", requestID,
		"error_type", req.ErrorType,
	)
	return updated, nil
}

// CompleteErrorRequest closes a resolved ticket. Admin-only.
func (s *Service) CompleteErrorRequest(ctx context.Context, requestID id.ErrorRequestID) (*models.ErrorRequest, error) {
	ctx, span := tracer.Start(ctx, "workflow.CompleteErrorRequest")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != id.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins complete error requests")
	}

	var from models.RequestStatus
	updated, err := s.requests.Execute(ctx, requestID,
		func(r *models.ErrorRequest) error {
			from = r.Status
			return r.CanComplete()
		},
		func(r *models.ErrorRequest) { r.ApplyCompletion(requestcontext.Now(ctx)) },
	)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	s.metrics.IncrementErrorRequest("completed")
	s.emit(ctx, audit.CategoryWorkflow, audit.EventErrorRequestCompleted, updated.DocumentID,
		string(from), string(models.RequestCompleted), "")
	return updated, nil
}

// ListErrorRequests returns the tickets for one document, scoped like any
// document read.
func (s *Service) ListErrorRequests(ctx context.Context, documentID id.DocumentID) ([]*models.ErrorRequest, error) {
	ctx, span := tracer.Start(ctx, "workflow.ListErrorRequests")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if err := canView(actor, doc); err != nil {
		return nil, err
	}

	reqs, err := s.requests.ListByDocument(ctx, documentID)
	return reqs, translateStoreErr(err)
}

// guardAssignedDistributor loads a ticket and verifies the actor is the
// distributor bound to its parent document.
func (s *Service) guardAssignedDistributor(ctx context.Context, actor requestcontext.Principal, requestID id.ErrorRequestID) (*models.ErrorRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	doc, err := s.documents.FindByID(ctx, req.DocumentID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !doc.AssignedTo(actor.UserID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "error request is outside your scope")
	}
	return req, nil
}
