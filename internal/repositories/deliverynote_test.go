package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/albaranes/internal/models"
)

type statement struct {
	sql  string
	vars []interface{}
}

// dryRunDB builds statements without a server connection and records every
// insert, update and query it would have sent
func dryRunDB(t *testing.T) (*gorm.DB, *[]statement) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	var captured []statement
	record := func(tx *gorm.DB) {
		captured = append(captured, statement{sql: tx.Statement.SQL.String(), vars: tx.Statement.Vars})
	}
	require.NoError(t, db.Callback().Update().After("gorm:update").Register("test:record", record))
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:record", record))
	return db, &captured
}

func last(t *testing.T, captured *[]statement) statement {
	t.Helper()
	require.NotEmpty(t, *captured)
	return (*captured)[len(*captured)-1]
}

func TestMarkRenderedOnlyMovesDrafts(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewDeliveryNoteRepository(db, db)
	id := uuid.New()

	err := repo.MarkRendered(context.Background(), id, "https://files/a.pdf")
	assert.ErrorIs(t, err, ErrConditionFailed)

	stmt := last(t, captured)
	assert.Contains(t, stmt.sql, `UPDATE "delivery_notes" SET`)
	assert.Contains(t, stmt.sql, "status = $")
	assert.Contains(t, stmt.sql, "is_deleted = $")
	assert.Contains(t, stmt.sql, `"id" = $`)
	assert.Contains(t, stmt.vars, models.StatusDraft)
	assert.Contains(t, stmt.vars, id)
}

func TestMarkSignedRefusesSignedNotes(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewDeliveryNoteRepository(db, db)
	id := uuid.New()

	err := repo.MarkSigned(context.Background(), id, models.Signature{SignedBy: "Luis"}, "https://files/signed.pdf")
	assert.ErrorIs(t, err, ErrConditionFailed)

	stmt := last(t, captured)
	assert.Contains(t, stmt.sql, "status <> $")
	assert.Contains(t, stmt.sql, "is_deleted = $")
	assert.Contains(t, stmt.sql, `"signed_pdf_url"`)
	assert.Contains(t, stmt.vars, models.StatusSigned)
	assert.Contains(t, stmt.vars, false)
}

func TestSoftDeleteRefusesSignedNotes(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewDeliveryNoteRepository(db, db)

	err := repo.SoftDelete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrConditionFailed)

	stmt := last(t, captured)
	assert.Contains(t, stmt.sql, `SET "is_deleted"=$`)
	assert.Contains(t, stmt.sql, "status <> $")
	assert.Contains(t, stmt.sql, "is_deleted = $")
	assert.Contains(t, stmt.vars, models.StatusSigned)
}
