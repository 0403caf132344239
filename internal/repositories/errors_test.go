package repositories

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "noop"))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound, "get"), ErrNotFound)
	assert.ErrorIs(t, translate(errors.Wrap(gorm.ErrDuplicatedKey, "insert"), "create"), ErrDuplicateKey)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "23505", ConstraintName: "idx_delivery_notes_number"}, "create"), ErrDuplicateKey)

	other := translate(&pgconn.PgError{Code: "23503"}, "failed to create delivery note")
	assert.NotErrorIs(t, other, ErrDuplicateKey)
	assert.Contains(t, other.Error(), "failed to create delivery note")
}
