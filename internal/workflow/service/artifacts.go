package service

import (
	"context"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/platform/audit"

	"sevagate/internal/artifact"
)

// RegisterReceipt stores a receipt for the document on behalf of its assigned
// distributor. The registry handles validation and replacement; this layer
// adds the assignment check, cache invalidation, and the audit trail.
func (s *Service) RegisterReceipt(ctx context.Context, documentID id.DocumentID, upload artifact.Upload) (string, error) {
	ctx, span := tracer.Start(ctx, "workflow.RegisterReceipt")
	defer span.End()

	if err := s.guardUploader(ctx, documentID); err != nil {
		return "", err
	}

	url, err := s.registry.RegisterReceipt(ctx, documentID, upload)
	if err != nil {
		return "", err
	}

	s.cache.Invalidate(ctx, documentID)
	s.metrics.IncrementArtifact("receipt")
	s.emit(ctx, audit.CategoryWorkflow, audit.EventReceiptRegistered, documentID, "", "", "")
	return url, nil
}

// RegisterCertificate stores a certificate for the document on behalf of its
// assigned distributor, replacing any prior one.
func (s *Service) RegisterCertificate(ctx context.Context, documentID id.DocumentID, upload artifact.Upload) (string, error) {
	ctx, span := tracer.Start(ctx, "workflow.RegisterCertificate")
	defer span.End()

	if err := s.guardUploader(ctx, documentID); err != nil {
		return "", err
	}

	url, err := s.registry.RegisterCertificate(ctx, documentID, upload)
	if err != nil {
		return "", err
	}

	s.cache.Invalidate(ctx, documentID)
	s.metrics.IncrementArtifact("certificate")
	s.emit(ctx, audit.CategoryWorkflow, audit.EventCertificateRegistered, documentID, "", "", "")
	return url, nil
}

// guardUploader requires the caller to be the distributor assigned to the
// document. Admins may upload on a distributor's behalf.
func (s *Service) guardUploader(ctx context.Context, documentID id.DocumentID) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if actor.Role == id.RoleAdmin {
		return nil
	}
	if actor.Role != id.RoleDistributor {
		return dErrors.New(dErrors.CodeForbidden, "only the assigned distributor uploads artifacts")
	}

	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return translateStoreErr(err)
	}
	if !doc.AssignedTo(actor.UserID) {
		return dErrors.New(dErrors.CodeForbidden, "document is assigned to another distributor")
	}
	return nil
}
