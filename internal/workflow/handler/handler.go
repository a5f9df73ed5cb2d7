// Package handler exposes the workflow over HTTP. Handlers decode, guard,
// delegate, and encode; every rule lives in the service layer.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/platform/httputil"
	"sevagate/pkg/requestcontext"

	"sevagate/internal/artifact"
	"sevagate/internal/roleguard"
	"sevagate/internal/workflow/models"
	"sevagate/internal/workflow/service"
)

// Service is the workflow surface the handlers need.
type Service interface {
	CreateDocument(ctx context.Context, categoryID, subcategoryID string, fields models.Fields) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)
	Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	History(ctx context.Context, documentID id.DocumentID) ([]models.StatusHistoryEntry, error)
	Transition(ctx context.Context, documentID id.DocumentID, target models.Status, payload service.TransitionPayload) (*models.Document, error)
	Assign(ctx context.Context, documentID id.DocumentID, distributorID id.UserID, remark string, reviewed []bool) (*models.Document, error)

	CreateErrorRequest(ctx context.Context, documentID id.DocumentID, errorType models.ErrorType, description, evidenceURL string) (*models.ErrorRequest, error)
	RejectErrorRequest(ctx context.Context, requestID id.ErrorRequestID, reason string) (*models.ErrorRequest, error)
	ResolveErrorRequest(ctx context.Context, requestID id.ErrorRequestID, upload artifact.Upload) (*models.ErrorRequest, error)
	CompleteErrorRequest(ctx context.Context, requestID id.ErrorRequestID) (*models.ErrorRequest, error)
	ListErrorRequests(ctx context.Context, documentID id.DocumentID) ([]*models.ErrorRequest, error)

	RegisterReceipt(ctx context.Context, documentID id.DocumentID, upload artifact.Upload) (string, error)
	RegisterCertificate(ctx context.Context, documentID id.DocumentID, upload artifact.Upload) (string, error)
}

// Exporter streams the artifact bundle.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

// Handler wires the workflow endpoints onto a chi router.
type Handler struct {
	service   Service
	exporter  Exporter
	validator roleguard.Validator
	logger    *slog.Logger
}

func New(svc Service, exporter Exporter, validator roleguard.Validator, logger *slog.Logger) *Handler {
	return &Handler{
		service:   svc,
		exporter:  exporter,
		validator: validator,
		logger:    logger,
	}
}

// Register mounts all workflow routes. Authentication applies to everything;
// role fences sit on the routes whose role set is fixed. Transition role
// rules depend on the edge, so the service enforces those itself.
func (h *Handler) Register(r chi.Router) {
	auth := roleguard.RequireAuth(h.validator, h.logger)
	customers := roleguard.RequireRoles(h.logger, id.RoleCustomer)
	distributors := roleguard.RequireRoles(h.logger, id.RoleDistributor)
	admins := roleguard.RequireRoles(h.logger, id.RoleAdmin)
	staff := roleguard.RequireRoles(h.logger, id.RoleAdmin, id.RoleEmployee)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Route("/documents", func(r chi.Router) {
			r.With(customers).Post("/", h.handleCreateDocument)
			r.Get("/", h.handleListDocuments)
			r.With(staff).Get("/export", h.handleExport)
			r.Get("/{id}", h.handleGetDocument)
			r.Get("/{id}/history", h.handleHistory)
			r.Post("/{id}/transition", h.handleTransition)
			r.With(admins).Post("/{id}/assign-distributor", h.handleAssign)
			r.With(distributors).Put("/{id}/receipt", h.handleUploadReceipt)
		})

		r.With(distributors).Post("/certificates", h.handleUploadCertificate)

		r.Route("/request-errors", func(r chi.Router) {
			r.With(customers).Post("/", h.handleCreateErrorRequest)
			r.Get("/", h.handleListErrorRequests)
			r.Patch("/{id}/status", h.handleUpdateErrorRequestStatus)
			r.With(distributors).Post("/{id}/resolve", h.handleResolveErrorRequest)
		})
	})
}

func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateDocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	doc, err := h.service.CreateDocument(ctx, req.CategoryID, req.SubcategoryID, req.DocumentFields)
	if err != nil {
		h.writeServiceError(w, r, "create document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, newDocumentResponse(doc))
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list documents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newDocumentListResponse(docs))
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, "get document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newDocumentResponse(doc))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	history, err := h.service.History(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, "document history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status_history": history})
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	target, err := models.ParseStatus(req.TargetStatus)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.service.Transition(ctx, docID, target, service.TransitionPayload{
		Reason:                req.Reason,
		Remark:                req.Remark,
		SelectedDocumentNames: req.SelectedDocumentNames,
	})
	if err != nil {
		h.writeServiceError(w, r, "transition document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newDocumentResponse(doc))
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssignRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	distributorID, err := id.ParseUserID(req.DistributorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.service.Assign(ctx, docID, distributorID, req.Remark, req.Reviewed)
	if err != nil {
		h.writeServiceError(w, r, "assign distributor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newDocumentResponse(doc))
}

func (h *Handler) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.documentID(w, r)
	if !ok {
		return
	}
	upload, cleanup, ok := h.uploadFromRequest(w, r)
	if !ok {
		return
	}
	defer cleanup()

	url, err := h.service.RegisterReceipt(r.Context(), docID, upload)
	if err != nil {
		h.writeServiceError(w, r, "register receipt", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, uploadResponse{URL: url})
}

func (h *Handler) handleUploadCertificate(w http.ResponseWriter, r *http.Request) {
	upload, cleanup, ok := h.uploadFromRequest(w, r)
	if !ok {
		return
	}
	defer cleanup()

	docID, err := id.ParseDocumentID(r.FormValue("documentId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	url, err := h.service.RegisterCertificate(r.Context(), docID, upload)
	if err != nil {
		h.writeServiceError(w, r, "register certificate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, uploadResponse{URL: url})
}

func (h *Handler) handleCreateErrorRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateErrorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	docID, err := id.ParseDocumentID(req.DocumentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	errorType, err := models.ParseErrorType(req.ErrorType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.service.CreateErrorRequest(ctx, docID, errorType, req.Description, req.EvidenceURL)
	if err != nil {
		h.writeServiceError(w, r, "create error request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListErrorRequests(w http.ResponseWriter, r *http.Request) {
	docID, err := id.ParseDocumentID(r.URL.Query().Get("documentId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "documentId query parameter is required"))
		return
	}
	reqs, err := h.service.ListErrorRequests(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, "list error requests", err)
		return
	}
	if reqs == nil {
		reqs = []*models.ErrorRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, reqs)
}

// handleUpdateErrorRequestStatus dispatches the two closing moves of a
// ticket: the assigned distributor rejects with a reason, an admin completes
// a resolved request.
func (h *Handler) handleUpdateErrorRequestStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID, ok := h.errorRequestID(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[UpdateErrorRequestStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	target, err := models.ParseRequestStatus(body.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var updated *models.ErrorRequest
	switch target {
	case models.RequestDistributorRejected:
		updated, err = h.service.RejectErrorRequest(ctx, reqID, body.Reason)
	case models.RequestCompleted:
		updated, err = h.service.CompleteErrorRequest(ctx, reqID)
	default:
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidTransition,
			"status %s cannot be set directly", target))
		return
	}
	if err != nil {
		h.writeServiceError(w, r, "update error request status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleResolveErrorRequest(w http.ResponseWriter, r *http.Request) {
	reqID, ok := h.errorRequestID(w, r)
	if !ok {
		return
	}
	upload, cleanup, ok := h.uploadFromRequest(w, r)
	if !ok {
		return
	}
	defer cleanup()

	updated, err := h.service.ResolveErrorRequest(r.Context(), reqID, upload)
	if err != nil {
		h.writeServiceError(w, r, "resolve error request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="artifacts-`+time.Now().Format("20060102")+`.zip"`)

	if err := h.exporter.Export(ctx, w); err != nil {
		// Headers are gone once streaming starts; log and drop the
		// connection rather than writing a JSON error into the archive.
		h.logger.ErrorContext(ctx, "artifact export failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// uploadFromRequest parses the multipart body into an artifact upload. The
// returned cleanup closes the part; callers defer it.
func (h *Handler) uploadFromRequest(w http.ResponseWriter, r *http.Request) (artifact.Upload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, artifact.MaxSize+httputil.MaxBodyBytes)
	if err := r.ParseMultipartForm(artifact.MaxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeTooLarge, "artifact exceeds the 5 MiB limit"))
			return artifact.Upload{}, nil, false
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed multipart body"))
		return artifact.Upload{}, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "a file part named 'file' is required"))
		return artifact.Upload{}, nil, false
	}

	return artifact.Upload{
		Filename:    header.Filename,
		ContentType: contentTypeOf(header),
		Size:        header.Size,
		Content:     file,
	}, func() { _ = file.Close() }, true
}

func contentTypeOf(header *multipart.FileHeader) string {
	return header.Header.Get("Content-Type")
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (id.DocumentID, bool) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DocumentID{}, false
	}
	return docID, true
}

func (h *Handler) errorRequestID(w http.ResponseWriter, r *http.Request) (id.ErrorRequestID, bool) {
	reqID, err := id.ParseErrorRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ErrorRequestID{}, false
	}
	return reqID, true
}

// writeServiceError logs server-side failures and writes the translated
// response. Client-caused refusals are logged at debug to keep noise down.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "operation failed",
			"op", op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.DebugContext(ctx, "request refused",
			"op", op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
