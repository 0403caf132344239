package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/albaranes/internal/models"
)

var fixedNow = time.Date(2024, time.June, 3, 9, 30, 0, 0, time.UTC)

// dryRunDB builds statements without a server connection
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	RegisterDeliveryNoteHooks(db, func() time.Time { return fixedNow })
	return db
}

func item(desc string, qty, price int64) models.LineItem {
	return models.LineItem{
		Description: desc,
		Quantity:    decimal.NewNullDecimal(decimal.NewFromInt(qty)),
		Unit:        models.UnitHour,
		UnitPrice:   decimal.NewNullDecimal(decimal.NewFromInt(price)),
	}
}

func TestAssignNumber(t *testing.T) {
	note := &models.DeliveryNote{}
	last := "ALB-2405-0012"

	assignNumber(note, fixedNow, func() (*string, error) { return &last, nil })
	assert.Equal(t, "ALB-2406-0013", note.Number)

	assignNumber(note, fixedNow, func() (*string, error) { return nil, nil })
	assert.Equal(t, "ALB-2406-0001", note.Number)

	assignNumber(note, fixedNow, func() (*string, error) { return nil, errors.New("connection reset") })
	assert.Equal(t, "ALB-1717407000000", note.Number)
}

func TestCreateAssignsNumberAndTotal(t *testing.T) {
	db := dryRunDB(t)
	note := &models.DeliveryNote{
		Items: []models.LineItem{item("Consulting", 5, 50)},
		Total: decimal.NewFromInt(1),
	}

	require.NoError(t, db.Create(note).Error)

	assert.Equal(t, "ALB-2406-0001", note.Number)
	assert.True(t, note.Total.Equal(decimal.NewFromInt(250)), note.Total.String())
	assert.True(t, note.Items[0].Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, models.StatusDraft, note.Status)
}

func TestCreateKeepsPresetNumber(t *testing.T) {
	db := dryRunDB(t)
	note := &models.DeliveryNote{Number: "ALB-2406-0042", Items: []models.LineItem{item("a", 1, 1)}}

	require.NoError(t, db.Create(note).Error)

	assert.Equal(t, "ALB-2406-0042", note.Number)
}

func TestUpdateRecomputesTotalAndNeverWritesNumber(t *testing.T) {
	db := dryRunDB(t)
	note := &models.DeliveryNote{
		ID:     uuid.New(),
		Number: "ALB-2406-0001",
		Items:  []models.LineItem{item("Labor", 2, 50), item("Material", 5, 30)},
	}

	stmt := db.Model(note).Select("items").Updates(note).Statement
	require.NoError(t, stmt.Error)

	assert.True(t, note.Total.Equal(decimal.NewFromInt(250)))
	assert.Contains(t, stmt.SQL.String(), `"total"`)
	assert.NotContains(t, stmt.SQL.String(), `"number"`)
}

func TestUpdateWithoutItemsLeavesTotalAlone(t *testing.T) {
	db := dryRunDB(t)
	url := "https://storage/delivery-note.pdf"
	note := &models.DeliveryNote{ID: uuid.New()}

	stmt := db.Model(note).
		Select("pdf_url", "status").
		Updates(&models.DeliveryNote{PdfURL: &url, Status: models.StatusSent}).Statement
	require.NoError(t, stmt.Error)

	assert.NotContains(t, stmt.SQL.String(), `"total"`)
	assert.Contains(t, stmt.SQL.String(), `"pdf_url"`)
}
