package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	id "sevagate/pkg/domain"
	"sevagate/pkg/platform/sentinel"

	"sevagate/internal/workflow/models"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewPostgres(db), mock, func() { _ = db.Close() }
}

func documentRows(t *testing.T, doc *models.Document) *sqlmock.Rows {
	t.Helper()
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		t.Fatalf("marshal fields: %v", err)
	}
	history, err := json.Marshal(doc.StatusHistory)
	if err != nil {
		t.Fatalf("marshal history: %v", err)
	}

	var distributor any
	if doc.DistributorID != nil {
		distributor = doc.DistributorID.String()
	}

	return sqlmock.NewRows([]string{
		"document_id", "application_id", "category_id", "subcategory_id", "user_id",
		"distributor_id", "status", "document_fields", "receipt_url", "rejection_reason",
		"selected_document_names", "remark", "status_history", "uploaded_at", "version",
	}).AddRow(
		doc.ID.String(), doc.ApplicationID, doc.CategoryID, doc.SubcategoryID,
		doc.UserID.String(), distributor, string(doc.Status), fields, nil, nil,
		"{}", nil, history, doc.UploadedAt, doc.Version,
	)
}

func testDocument(t *testing.T) *models.Document {
	t.Helper()
	doc, err := models.NewDocument(
		id.DocumentID(uuid.New()),
		"APP-PG-1",
		id.UserID(uuid.New()),
		"cat", "sub",
		models.Fields{{Name: "surname", Value: "Kumar"}},
		time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

func TestFindByIDReturnsNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	missing := id.DocumentID(uuid.New())
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE document_id").
		WithArgs(missing.String()).
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindByID(context.Background(), missing)
	if !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByIDScansDocument(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	doc := testDocument(t)
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE document_id").
		WithArgs(doc.ID.String()).
		WillReturnRows(documentRows(t, doc))

	found, err := store.FindByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ApplicationID != doc.ApplicationID {
		t.Fatalf("expected application ID %q, got %q", doc.ApplicationID, found.ApplicationID)
	}
	if found.Status != models.StatusPending {
		t.Fatalf("expected status Pending, got %s", found.Status)
	}
	if len(found.StatusHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(found.StatusHistory))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteCommitsWithVersionBump(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	doc := testDocument(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE document_id = \\$1 FOR UPDATE").
		WithArgs(doc.ID.String()).
		WillReturnRows(documentRows(t, doc))
	mock.ExpectExec("UPDATE documents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := store.Execute(context.Background(), doc.ID,
		func(*models.Document) error { return nil },
		func(d *models.Document) { d.ApplyStatus(models.StatusApproved, time.Now()) },
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if updated.Version != doc.Version+1 {
		t.Fatalf("expected version bump to %d, got %d", doc.Version+1, updated.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteRollsBackOnValidationFailure(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	doc := testDocument(t)
	refused := errors.New("edge refused")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE document_id = \\$1 FOR UPDATE").
		WithArgs(doc.ID.String()).
		WillReturnRows(documentRows(t, doc))
	mock.ExpectRollback()

	_, err := store.Execute(context.Background(), doc.ID,
		func(*models.Document) error { return refused },
		func(d *models.Document) { d.ApplyStatus(models.StatusApproved, time.Now()) },
	)
	if !errors.Is(err, refused) {
		t.Fatalf("expected validation error to surface, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteStaleVersionReturnsConflict(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	doc := testDocument(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE document_id = \\$1 FOR UPDATE").
		WithArgs(doc.ID.String()).
		WillReturnRows(documentRows(t, doc))
	mock.ExpectExec("UPDATE documents").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.Execute(context.Background(), doc.ID,
		func(*models.Document) error { return nil },
		func(d *models.Document) { d.ApplyStatus(models.StatusApproved, time.Now()) },
	)
	if !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
