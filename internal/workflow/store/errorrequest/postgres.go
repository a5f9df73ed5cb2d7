package errorrequest

import (
	"context"
	"database/sql"
	"fmt"

	id "sevagate/pkg/domain"
	"sevagate/pkg/platform/sentinel"

	"sevagate/internal/workflow/models"
)

// PostgresStore persists error requests in PostgreSQL. Execute mirrors the
// document store: row lock, validate-then-mutate, version-checked update.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `request_id, document_id, application_id, error_type,
	request_description, error_document, request_status, rejection_reason,
	created_at, updated_at, version`

func (s *PostgresStore) Create(ctx context.Context, req *models.ErrorRequest) error {
	query := `
		INSERT INTO error_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		req.ID.String(), req.DocumentID.String(), req.ApplicationID,
		string(req.ErrorType), req.Description, nullable(req.EvidenceURL),
		string(req.Status), nullable(req.RejectionReason),
		req.CreatedAt, req.UpdatedAt, req.Version,
	)
	if err != nil {
		return fmt.Errorf("create error request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.ErrorRequestID) (*models.ErrorRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM error_requests WHERE request_id = $1`
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, requestID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find error request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, documentID id.DocumentID) ([]*models.ErrorRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM error_requests WHERE document_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, documentID.String())
	if err != nil {
		return nil, fmt.Errorf("list error requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ErrorRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, requestID id.ErrorRequestID, validate func(*models.ErrorRequest) error, mutate func(*models.ErrorRequest)) (*models.ErrorRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin error request update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + requestColumns + ` FROM error_requests WHERE request_id = $1 FOR UPDATE`
	req, err := scanRequest(tx.QueryRowContext(ctx, query, requestID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock error request: %w", err)
	}

	if err := validate(req); err != nil {
		return nil, err
	}
	mutate(req)
	previousVersion := req.Version
	req.Version++

	update := `
		UPDATE error_requests
		SET request_status = $2, rejection_reason = $3, updated_at = $4, version = $5
		WHERE request_id = $1 AND version = $6
	`
	result, err := tx.ExecContext(ctx, update,
		req.ID.String(), string(req.Status), nullable(req.RejectionReason),
		req.UpdatedAt, req.Version, previousVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update error request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update error request rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit error request update: %w", err)
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.ErrorRequest, error) {
	var (
		req      models.ErrorRequest
		reqID    string
		docID    string
		errType  string
		status   string
		evidence sql.NullString
		reason   sql.NullString
	)

	err := row.Scan(&reqID, &docID, &req.ApplicationID, &errType,
		&req.Description, &evidence, &status, &reason,
		&req.CreatedAt, &req.UpdatedAt, &req.Version)
	if err != nil {
		return nil, err
	}

	parsedReqID, err := id.ParseErrorRequestID(reqID)
	if err != nil {
		return nil, err
	}
	req.ID = parsedReqID

	parsedDocID, err := id.ParseDocumentID(docID)
	if err != nil {
		return nil, err
	}
	req.DocumentID = parsedDocID

	req.ErrorType = models.ErrorType(errType)
	req.Status = models.RequestStatus(status)
	req.EvidenceURL = evidence.String
	req.RejectionReason = reason.String
	return &req, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
