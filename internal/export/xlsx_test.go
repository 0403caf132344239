package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"example.com/albaranes/internal/models"
)

func TestWriteDeliveryNotes(t *testing.T) {
	signed := "https://files/signed.pdf"
	notes := []models.DeliveryNote{
		{
			Number: "ALB-2406-0001",
			Date:   time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC),
			Status: models.StatusSigned,
			Items:  []models.LineItem{{Description: "Consulting"}},
			Total:  decimal.NewFromInt(250),
			Signature: &models.Signature{
				SignedBy: "Luis",
			},
			SignedPdfURL: &signed,
		},
		{
			Number: "ALB-2406-0002",
			Date:   time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC),
			Status: models.StatusDraft,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDeliveryNotes(&buf, notes))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, headings, rows[0])
	assert.Equal(t, []string{"ALB-2406-0001", "2024-06-03", "signed", "1", "250", "Luis", signed}, rows[1])
	assert.Equal(t, "ALB-2406-0002", rows[2][0])
	assert.Equal(t, "draft", rows[2][2])
}

func TestWriteDeliveryNotesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDeliveryNotes(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
