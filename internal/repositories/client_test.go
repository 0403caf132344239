package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/albaranes/internal/models"
)

func TestListByOwnerHidesArchivedClients(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewClientRepository(db, db)
	userID := uuid.New()

	_, err := repo.ListByOwner(context.Background(), ClientFilter{UserID: userID})
	require.NoError(t, err)
	stmt := last(t, captured)
	assert.Contains(t, stmt.sql, "is_deleted = $")
	assert.Contains(t, stmt.sql, "is_archived = $")
	assert.Contains(t, stmt.sql, "owner_kind = $")
	assert.NotContains(t, stmt.sql, "ILIKE")
	assert.Contains(t, stmt.vars, userID)

	_, err = repo.ListByOwner(context.Background(), ClientFilter{UserID: userID, IncludeArchived: true, Search: "50%"})
	require.NoError(t, err)
	stmt = last(t, captured)
	assert.NotContains(t, stmt.sql, "is_archived")
	assert.Contains(t, stmt.sql, "name ILIKE $")
	assert.Contains(t, stmt.vars, `%50\%%`)
}

func TestClientSoftDeleteRequiresNoLiveProjects(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewClientRepository(db, db)
	id := uuid.New()

	err := repo.SoftDelete(context.Background(), id)
	assert.ErrorIs(t, err, ErrConditionFailed)

	stmt := last(t, captured)
	assert.Contains(t, stmt.sql, `UPDATE "clients" SET "is_deleted"=$`)
	assert.Contains(t, stmt.sql, `NOT EXISTS (SELECT 1 FROM "projects" WHERE client_id = $`)
	assert.Contains(t, stmt.vars, id)
}

func TestClientUpdateSkipsArchivedRows(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewClientRepository(db, db)

	err := repo.Update(context.Background(), &models.Client{ID: uuid.New(), Name: "Obras SL"})
	assert.ErrorIs(t, err, ErrConditionFailed)

	stmt := last(t, captured)
	assert.Contains(t, stmt.sql, "is_archived = $")
	assert.Contains(t, stmt.sql, `"name"=$`)
	assert.NotContains(t, stmt.sql, `"owner_id"=`)
}
