// Package totals computes line amounts and the grand total of a delivery note.
package totals

import (
	"github.com/shopspring/decimal"

	"example.com/albaranes/internal/models"
)

// Amount returns quantity * unit price when a positive unit price is present,
// the bare quantity when it is not, and zero when the quantity is missing.
func Amount(item models.LineItem) decimal.Decimal {
	if !item.Quantity.Valid {
		return decimal.Zero
	}
	if item.UnitPrice.Valid && item.UnitPrice.Decimal.IsPositive() {
		return item.Quantity.Decimal.Mul(item.UnitPrice.Decimal)
	}
	return item.Quantity.Decimal
}

// Compute returns a copy of items with every Amount recomputed, plus the sum of
// those amounts taken in item order. Any stored amount is ignored.
func Compute(items []models.LineItem) ([]models.LineItem, decimal.Decimal) {
	out := make([]models.LineItem, len(items))
	total := decimal.Zero
	for i, item := range items {
		item.Amount = Amount(item)
		total = total.Add(item.Amount)
		out[i] = item
	}
	return out, total
}

// Apply recomputes the amounts and total of note in place
func Apply(note *models.DeliveryNote) {
	note.Items, note.Total = Compute(note.Items)
}
