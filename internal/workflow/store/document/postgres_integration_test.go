//go:build integration

package document_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sevagate/internal/workflow/models"
	"sevagate/internal/workflow/store/document"
	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/platform/sentinel"
	"sevagate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *document.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	schema, err := os.ReadFile("../../../../migrations/0001_init.sql")
	s.Require().NoError(err, "read schema")

	s.postgres = containers.NewPostgresContainer(s.T(), string(schema))
	s.store = document.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()

	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "error_requests", "certificates", "documents")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newTestDocument(userID id.UserID) *models.Document {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc, err := models.NewDocument(
		id.DocumentID(uuid.New()),
		"APP-20260901-"+uuid.NewString()[:8],
		userID,
		"income", "income-proof",
		models.Fields{{Name: "applicant_name", Value: "Test Applicant"}},
		now,
	)
	s.Require().NoError(err)
	return doc
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	doc := s.newTestDocument(id.UserID(uuid.New()))

	s.Require().NoError(s.store.Create(ctx, doc))

	got, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.ID, got.ID)
	s.Equal(doc.ApplicationID, got.ApplicationID)
	s.Equal(doc.UserID, got.UserID)
	s.Equal(models.StatusPending, got.Status)
	s.Equal(doc.Fields, got.Fields)
	s.Nil(got.DistributorID)
	s.Empty(got.ReceiptURL)
	s.Len(got.StatusHistory, 1)
	s.Equal(int64(1), got.Version)
	s.WithinDuration(doc.UploadedAt, got.UploadedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestCreateDuplicateApplicationID() {
	ctx := context.Background()
	first := s.newTestDocument(id.UserID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, first))

	dup := s.newTestDocument(id.UserID(uuid.New()))
	dup.ApplicationID = first.ApplicationID

	err := s.store.Create(ctx, dup)
	s.Require().ErrorIs(err, sentinel.ErrAlreadyExists)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.DocumentID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListScoping() {
	ctx := context.Background()
	owner := id.UserID(uuid.New())
	other := id.UserID(uuid.New())
	distributor := id.UserID(uuid.New())

	mine := s.newTestDocument(owner)
	theirs := s.newTestDocument(other)
	s.Require().NoError(s.store.Create(ctx, mine))
	s.Require().NoError(s.store.Create(ctx, theirs))

	_, err := s.store.Execute(ctx, theirs.ID,
		func(*models.Document) error { return nil },
		func(d *models.Document) { d.ApplyAssignment(distributor, "verify income proof") },
	)
	s.Require().NoError(err)

	byUser, err := s.store.ListByUser(ctx, owner)
	s.Require().NoError(err)
	s.Len(byUser, 1)
	s.Equal(mine.ID, byUser[0].ID)

	byDistributor, err := s.store.ListByDistributor(ctx, distributor)
	s.Require().NoError(err)
	s.Len(byDistributor, 1)
	s.Equal(theirs.ID, byDistributor[0].ID)

	all, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresStoreSuite) TestExecutePersistsMutationAndBumpsVersion() {
	ctx := context.Background()
	doc := s.newTestDocument(id.UserID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, doc))

	now := time.Now().UTC()
	updated, err := s.store.Execute(ctx, doc.ID,
		func(d *models.Document) error {
			if d.Status != models.StatusPending {
				return sentinel.ErrInvalidState
			}
			return nil
		},
		func(d *models.Document) {
			d.ApplyRejection("missing pages", []string{"income-proof.pdf"}, now)
		},
	)
	s.Require().NoError(err)
	s.Equal(int64(2), updated.Version)

	got, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, got.Status)
	s.Equal("missing pages", got.RejectionReason)
	s.Equal([]string{"income-proof.pdf"}, got.SelectedDocumentNames)
	s.Len(got.StatusHistory, 2)
	s.Equal(int64(2), got.Version)
}

func (s *PostgresStoreSuite) TestExecuteValidationFailureLeavesRowUntouched() {
	ctx := context.Background()
	doc := s.newTestDocument(id.UserID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, doc))

	refused := dErrors.New(dErrors.CodeInvalidTransition, "cannot complete a pending application")
	_, err := s.store.Execute(ctx, doc.ID,
		func(*models.Document) error { return refused },
		func(d *models.Document) { d.ApplyStatus(models.StatusCompleted, time.Now()) },
	)
	s.Require().ErrorIs(err, refused)

	got, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
	s.Equal(int64(1), got.Version)
	s.Len(got.StatusHistory, 1)
}

func (s *PostgresStoreSuite) TestExecuteMissingDocument() {
	_, err := s.store.Execute(context.Background(), id.DocumentID(uuid.New()),
		func(*models.Document) error { return nil },
		func(*models.Document) {},
	)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentTransitionSingleWinner verifies that concurrent transitions on
// one row serialize under the lock: exactly one goroutine moves the document
// out of Pending and the rest re-validate against committed state and refuse.
func (s *PostgresStoreSuite) TestConcurrentTransitionSingleWinner() {
	ctx := context.Background()
	distributor := id.UserID(uuid.New())
	doc := s.newTestDocument(id.UserID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, doc))

	const goroutines = 50
	var (
		wg        sync.WaitGroup
		successes atomic.Int64
	)
	notPending := dErrors.New(dErrors.CodeInvalidTransition, "already approved")

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, doc.ID,
				func(d *models.Document) error {
					if d.Status != models.StatusPending {
						return notPending
					}
					return nil
				},
				func(d *models.Document) {
					d.ApplyAssignment(distributor, "")
					d.ApplyStatus(models.StatusApproved, time.Now())
				},
			)
			if err == nil {
				successes.Add(1)
				return
			}
			if !errors.Is(err, notPending) {
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int64(1), successes.Load(), "exactly one transition should win")

	got, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Equal(int64(2), got.Version)
	s.Len(got.StatusHistory, 2)
}
