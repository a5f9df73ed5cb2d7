// Package service implements the workflow engine: the document status
// machine, distributor assignment, and the post-completion error correction
// flow. Handlers stay thin; every rule lives here or in models.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	audit "sevagate/pkg/platform/audit"
	"sevagate/pkg/platform/audit/publisher"
	"sevagate/pkg/platform/sentinel"
	"sevagate/pkg/requestcontext"

	"sevagate/internal/artifact"
	"sevagate/internal/workflow/cache"
	"sevagate/internal/workflow/metrics"
	"sevagate/internal/workflow/models"
)

var tracer = otel.Tracer("sevagate/internal/workflow/service")

// DocumentStore is the persistence contract for document aggregates.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Document, error)
	ListByDistributor(ctx context.Context, distributorID id.UserID) ([]*models.Document, error)
	ListAll(ctx context.Context) ([]*models.Document, error)
	Execute(ctx context.Context, documentID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error)
}

// ErrorRequestStore is the persistence contract for correction tickets.
type ErrorRequestStore interface {
	Create(ctx context.Context, req *models.ErrorRequest) error
	FindByID(ctx context.Context, requestID id.ErrorRequestID) (*models.ErrorRequest, error)
	ListByDocument(ctx context.Context, documentID id.DocumentID) ([]*models.ErrorRequest, error)
	Execute(ctx context.Context, requestID id.ErrorRequestID, validate func(*models.ErrorRequest) error, mutate func(*models.ErrorRequest)) (*models.ErrorRequest, error)
}

// ArtifactRegistry is the slice of the artifact registries the workflow needs:
// re-uploads during error resolution and certificate presence checks during
// reconciliation.
type ArtifactRegistry interface {
	RegisterReceipt(ctx context.Context, documentID id.DocumentID, upload artifact.Upload) (string, error)
	RegisterCertificate(ctx context.Context, documentID id.DocumentID, upload artifact.Upload) (string, error)
	CertificateFor(ctx context.Context, documentID id.DocumentID) (string, error)
}

// Service is the workflow engine.
type Service struct {
	documents DocumentStore
	requests  ErrorRequestStore
	registry  ArtifactRegistry

	cache   *cache.DocumentCache
	metrics *metrics.Metrics
	audit   *publisher.Publisher
	logger  *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit enables audit event emission.
func WithAudit(p *publisher.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithCache enables the read-through document cache.
func WithCache(c *cache.DocumentCache) Option {
	return func(s *Service) { s.cache = c }
}

func New(documents DocumentStore, requests ErrorRequestStore, registry ArtifactRegistry, opts ...Option) *Service {
	s := &Service{
		documents: documents,
		requests:  requests,
		registry:  registry,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit records an audit event with the actor and correlation fields filled in.
func (s *Service) emit(ctx context.Context, category audit.EventCategory, action audit.Action, documentID id.DocumentID, from, to, reason string) {
	if s.audit == nil {
		return
	}
	actor := requestcontext.Actor(ctx)
	_ = s.audit.Emit(ctx, audit.Event{
		Category:   category,
		Timestamp:  requestcontext.Now(ctx),
		DocumentID: documentID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     string(action),
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
	})
}

// requireActor returns the authenticated principal or Unauthorized.
func requireActor(ctx context.Context) (requestcontext.Principal, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsZero() {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// canView applies the read-scoping rules: customers see their own documents,
// distributors their assignments, admins and employees everything.
func canView(actor requestcontext.Principal, doc *models.Document) error {
	switch actor.Role {
	case id.RoleAdmin, id.RoleEmployee:
		return nil
	case id.RoleCustomer:
		if doc.OwnedBy(actor.UserID) {
			return nil
		}
	case id.RoleDistributor:
		if doc.AssignedTo(actor.UserID) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "document is outside your scope")
}

// translateStoreErr maps infrastructure sentinels onto domain error codes.
// Already-coded errors pass through unchanged.
func translateStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "concurrent modification, retry")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.New(dErrors.CodeConflict, "already exists")
	default:
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "store failure")
	}
}
