package service

import (
	"context"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	audit "sevagate/pkg/platform/audit"
	"sevagate/pkg/requestcontext"

	"sevagate/internal/workflow/models"
)

// Assign binds a distributor to a pending document and approves it in the
// same guarded mutation. Admin-only. The reviewed vector mirrors the
// attachment checklist: every element must be confirmed before assignment;
// an empty vector means the application carries no attachments and passes.
//
// Re-assignment of an already approved document swaps the distributor without
// appending a second Approved entry. Once the document is Sent or later the
// binding is immutable.
func (s *Service) Assign(ctx context.Context, documentID id.DocumentID, distributorID id.UserID, remark string, reviewed []bool) (*models.Document, error) {
	ctx, span := tracer.Start(ctx, "workflow.Assign")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != id.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins assign distributors")
	}
	if distributorID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "distributor id is required")
	}
	for i, ok := range reviewed {
		if !ok {
			return nil, dErrors.Newf(dErrors.CodePreconditionFailed,
				"incomplete review: attachment %d not confirmed", i+1)
		}
	}

	var from models.Status
	doc, err := s.documents.Execute(ctx, documentID,
		func(doc *models.Document) error {
			from = doc.Status
			return doc.CanReassign()
		},
		func(doc *models.Document) {
			doc.ApplyAssignment(distributorID, remark)
			if doc.Status == models.StatusPending {
				doc.ApplyStatus(models.StatusApproved, requestcontext.Now(ctx))
			}
		},
	)
	if err != nil {
		err = translateStoreErr(err)
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		return nil, err
	}

	s.cache.Invalidate(ctx, documentID)
	s.emit(ctx, audit.CategoryWorkflow, audit.EventDistributorAssigned, documentID, string(from), string(doc.Status), remark)
	if from == models.StatusPending {
		s.metrics.IncrementTransition(string(from), string(models.StatusApproved), string(actor.Role))
		s.emit(ctx, audit.CategoryWorkflow, audit.EventDocumentApproved, documentID, string(from), string(models.StatusApproved), "")
	}
	s.logger.InfoContext(ctx, "distributor assigned",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", documentID,
		"distributor_id", distributorID,
	)
	return doc, nil
}
