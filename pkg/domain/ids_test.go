package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sevagate/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// IDs entering at trust boundaries must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDocumentID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseDocumentID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		parsed, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), parsed)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
func TestTypeDistinction(t *testing.T) {
	docID := DocumentID(uuid.New())
	userID := UserID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ DocumentID = userID   // compile error
	// var _ UserID = docID        // compile error

	assert.NotEqual(t, uuid.UUID(docID), uuid.UUID(userID))
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"customer", "distributor", "employee", "admin"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		assert.True(t, r.Valid())
	}

	_, err := ParseRole("superuser")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
