package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "sevagate/pkg/domain"
	"sevagate/pkg/platform/sentinel"

	"sevagate/internal/workflow/models"
)

// PostgresStore persists documents in PostgreSQL. The store is pure I/O; all
// transition logic belongs in the service. Execute runs SELECT ... FOR UPDATE
// inside a transaction and bumps the version column, so two concurrent
// transitions on one document serialize at the row and the loser re-validates
// against committed state.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `document_id, application_id, category_id, subcategory_id, user_id,
	distributor_id, status, document_fields, receipt_url, rejection_reason,
	selected_document_names, remark, status_history, uploaded_at, version`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	if err := doc.CheckInvariants(); err != nil {
		return err
	}

	fields, history, err := marshalJSONColumns(doc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		doc.ID.String(), doc.ApplicationID, doc.CategoryID, doc.SubcategoryID,
		doc.UserID.String(), distributorValue(doc), string(doc.Status), fields,
		nullable(doc.ReceiptURL), nullable(doc.RejectionReason),
		selectedNames(doc), nullable(doc.Remark),
		history, doc.UploadedAt, doc.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE document_id = $1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, documentID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC`
	return s.list(ctx, query, userID.String())
}

func (s *PostgresStore) ListByDistributor(ctx context.Context, distributorID id.UserID) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE distributor_id = $1 ORDER BY uploaded_at DESC`
	return s.list(ctx, query, distributorID.String())
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY uploaded_at DESC`
	return s.list(ctx, query)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Execute locks the row, runs validate-then-mutate, and commits with a version
// check. A write that raced a concurrent commit returns sentinel.ErrConflict.
func (s *PostgresStore) Execute(ctx context.Context, documentID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin document update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + documentColumns + ` FROM documents WHERE document_id = $1 FOR UPDATE`
	doc, err := scanDocument(tx.QueryRowContext(ctx, query, documentID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock document: %w", err)
	}

	if err := validate(doc); err != nil {
		return nil, err
	}
	mutate(doc)
	previousVersion := doc.Version
	doc.Version++

	if err := doc.CheckInvariants(); err != nil {
		return nil, err
	}

	fields, history, err := marshalJSONColumns(doc)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE documents
		SET distributor_id = $2, status = $3, document_fields = $4,
		    receipt_url = $5, rejection_reason = $6, selected_document_names = $7,
		    remark = $8, status_history = $9, version = $10
		WHERE document_id = $1 AND version = $11
	`
	result, err := tx.ExecContext(ctx, update,
		doc.ID.String(), distributorValue(doc), string(doc.Status), fields,
		nullable(doc.ReceiptURL), nullable(doc.RejectionReason),
		selectedNames(doc), nullable(doc.Remark),
		history, doc.Version, previousVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update document rows affected: %w", err)
	}
	if affected == 0 {
		// Should be unreachable under FOR UPDATE; kept as a backstop for
		// read replicas or manual writes bypassing the lock.
		return nil, sentinel.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit document update: %w", err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc           models.Document
		docID         string
		userID        string
		distributorID sql.NullString
		status        string
		fieldsJSON    []byte
		receiptURL    sql.NullString
		reason        sql.NullString
		selected      pq.StringArray
		remark        sql.NullString
		historyJSON   []byte
	)

	err := row.Scan(&docID, &doc.ApplicationID, &doc.CategoryID, &doc.SubcategoryID,
		&userID, &distributorID, &status, &fieldsJSON, &receiptURL, &reason,
		&selected, &remark, &historyJSON, &doc.UploadedAt, &doc.Version)
	if err != nil {
		return nil, err
	}

	parsedDocID, err := id.ParseDocumentID(docID)
	if err != nil {
		return nil, err
	}
	doc.ID = parsedDocID

	parsedUserID, err := id.ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	doc.UserID = parsedUserID

	if distributorID.Valid {
		dist, err := id.ParseUserID(distributorID.String)
		if err != nil {
			return nil, err
		}
		doc.DistributorID = &dist
	}

	doc.Status = models.Status(status)
	doc.ReceiptURL = receiptURL.String
	doc.RejectionReason = reason.String
	doc.SelectedDocumentNames = selected
	doc.Remark = remark.String

	if err := json.Unmarshal(fieldsJSON, &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &doc.StatusHistory); err != nil {
		return nil, fmt.Errorf("decode status history: %w", err)
	}
	return &doc, nil
}

func marshalJSONColumns(doc *models.Document) (fields, history []byte, err error) {
	fields, err = json.Marshal(doc.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("encode document fields: %w", err)
	}
	history, err = json.Marshal(doc.StatusHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("encode status history: %w", err)
	}
	return fields, history, nil
}

// selectedNames never passes nil to pq.Array; the column is NOT NULL and a
// document without a selection stores an empty array.
func selectedNames(doc *models.Document) pq.StringArray {
	if doc.SelectedDocumentNames == nil {
		return pq.StringArray{}
	}
	return doc.SelectedDocumentNames
}

func distributorValue(doc *models.Document) any {
	if doc.DistributorID == nil {
		return nil
	}
	return doc.DistributorID.String()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
