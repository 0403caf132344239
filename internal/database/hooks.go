package database

import (
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/numbering"
	"example.com/albaranes/internal/totals"
)

// RegisterDeliveryNoteHooks registers the callbacks that keep a delivery note
// consistent on every save: a number is allocated on first insert and the
// total is recomputed from the items whenever they are written.
func RegisterDeliveryNoteHooks(db *gorm.DB, now func() time.Time) {
	db.Callback().Create().Before("gorm:create").Register("deliverynote:number", func(tx *gorm.DB) {
		note, ok := deliveryNote(tx)
		if !ok || note.Number != "" {
			return
		}
		assignNumber(note, now(), func() (*string, error) { return latestNumber(tx) })
	})

	db.Callback().Create().Before("gorm:create").Register("deliverynote:totals:create", func(tx *gorm.DB) {
		if note, ok := deliveryNote(tx); ok {
			totals.Apply(note)
		}
	})

	db.Callback().Update().Before("gorm:update").Register("deliverynote:totals:update", func(tx *gorm.DB) {
		note, ok := deliveryNote(tx)
		if !ok {
			return
		}
		// the number is immutable once assigned
		tx.Statement.Omits = append(tx.Statement.Omits, "number")
		if writesItems(tx.Statement, note) {
			totals.Apply(note)
			if len(tx.Statement.Selects) > 0 && !selects(tx.Statement, "*") {
				tx.Statement.Selects = append(tx.Statement.Selects, "total")
			}
		}
	})
}

// assignNumber allocates from the latest issued number; a failed lookup takes
// the fallback path.
func assignNumber(note *models.DeliveryNote, issuedAt time.Time, lookup func() (*string, error)) {
	last, err := lookup()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read latest delivery note number")
		note.Number = numbering.Fallback(issuedAt)
		return
	}
	note.Number = numbering.Allocate(issuedAt, last)
}

func deliveryNote(tx *gorm.DB) (*models.DeliveryNote, bool) {
	if tx.Error != nil || tx.Statement == nil {
		return nil, false
	}
	note, ok := tx.Statement.Dest.(*models.DeliveryNote)
	return note, ok && note != nil
}

// latestNumber reads the number of the most recently created note, nil when
// there is none.
func latestNumber(tx *gorm.DB) (*string, error) {
	var numbers []string
	err := tx.Session(&gorm.Session{NewDB: true}).
		WithContext(tx.Statement.Context).
		Model(&models.DeliveryNote{}).
		Order("created_at DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, nil
	}
	return &numbers[0], nil
}

func writesItems(stmt *gorm.Statement, note *models.DeliveryNote) bool {
	if len(stmt.Selects) == 0 {
		return len(note.Items) > 0
	}
	return selects(stmt, "*") || selects(stmt, "items") || selects(stmt, "Items")
}

func selects(stmt *gorm.Statement, column string) bool {
	for _, s := range stmt.Selects {
		if s == column {
			return true
		}
	}
	return false
}
