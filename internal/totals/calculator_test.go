package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/albaranes/internal/models"
)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestComputeMultipliesByPositivePrice(t *testing.T) {
	items, total := Compute([]models.LineItem{
		{Description: "Labor", Quantity: dec("2"), Unit: models.UnitHour, UnitPrice: dec("50")},
		{Description: "Material", Quantity: dec("5"), Unit: models.UnitUnit, UnitPrice: dec("30")},
	})

	require.Len(t, items, 2)
	assert.True(t, items[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, items[1].Amount.Equal(decimal.NewFromInt(150)))
	assert.True(t, total.Equal(decimal.NewFromInt(250)), total.String())
}

func TestComputeUsesQuantityWithoutPrice(t *testing.T) {
	items, total := Compute([]models.LineItem{
		{Description: "Hours", Quantity: dec("8"), Unit: models.UnitHour},
	})

	assert.True(t, items[0].Amount.Equal(decimal.NewFromInt(8)))
	assert.True(t, total.Equal(decimal.NewFromInt(8)))
}

func TestComputeUsesQuantityWhenPriceNotPositive(t *testing.T) {
	items, total := Compute([]models.LineItem{
		{Description: "Free", Quantity: dec("3"), Unit: models.UnitUnit, UnitPrice: dec("0")},
		{Description: "Refund", Quantity: dec("2"), Unit: models.UnitUnit, UnitPrice: dec("-10")},
	})

	assert.True(t, items[0].Amount.Equal(decimal.NewFromInt(3)))
	assert.True(t, items[1].Amount.Equal(decimal.NewFromInt(2)))
	assert.True(t, total.Equal(decimal.NewFromInt(5)))
}

func TestComputeZeroWithoutQuantity(t *testing.T) {
	items, total := Compute([]models.LineItem{
		{Description: "Unknown", Unit: models.UnitKg, UnitPrice: dec("12")},
	})

	assert.True(t, items[0].Amount.IsZero())
	assert.True(t, total.IsZero())
}

func TestComputeIgnoresStoredAmount(t *testing.T) {
	items, total := Compute([]models.LineItem{
		{Description: "Cable", Quantity: dec("1.5"), Unit: models.UnitMeter, UnitPrice: dec("2"), Amount: decimal.NewFromInt(999)},
	})

	assert.True(t, items[0].Amount.Equal(decimal.NewFromInt(3)))
	assert.True(t, total.Equal(decimal.NewFromInt(3)))
}

func TestComputeKeepsDecimalPrecision(t *testing.T) {
	_, total := Compute([]models.LineItem{
		{Description: "a", Quantity: dec("0.1"), Unit: models.UnitLiter, UnitPrice: dec("1")},
		{Description: "b", Quantity: dec("0.2"), Unit: models.UnitLiter, UnitPrice: dec("1")},
	})

	assert.Equal(t, "0.3", total.String())
}

func TestComputeEmpty(t *testing.T) {
	items, total := Compute(nil)

	assert.Empty(t, items)
	assert.True(t, total.IsZero())
}

func TestApplyUpdatesNote(t *testing.T) {
	note := &models.DeliveryNote{Items: []models.LineItem{
		{Description: "Labor", Quantity: dec("2"), Unit: models.UnitHour, UnitPrice: dec("50")},
	}}

	Apply(note)

	assert.True(t, note.Total.Equal(decimal.NewFromInt(100)))
	assert.True(t, note.Items[0].Amount.Equal(decimal.NewFromInt(100)))
}
