// Package export writes delivery note listings as spreadsheets.
package export

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"example.com/albaranes/internal/models"
)

const (
	// ContentTypeXLSX is the media type of the written workbook
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetName = "Delivery notes"
)

var headings = []string{"Number", "Date", "Status", "Items", "Total", "Signed by", "PDF"}

// Row is the spreadsheet form of one note
func Row(note *models.DeliveryNote) []interface{} {
	signedBy := ""
	if note.Signature != nil {
		signedBy = note.Signature.SignedBy
	}
	pdf := ""
	switch {
	case note.SignedPdfURL != nil:
		pdf = *note.SignedPdfURL
	case note.PdfURL != nil:
		pdf = *note.PdfURL
	}
	total, _ := note.Total.Float64()
	return []interface{}{
		note.Number,
		note.Date.Format("2006-01-02"),
		string(note.Status),
		len(note.Items),
		total,
		signedBy,
		pdf,
	}
}

// WriteDeliveryNotes writes one row per note after a heading row
func WriteDeliveryNotes(w io.Writer, notes []models.DeliveryNote) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return errors.Wrap(err, "failed to name sheet")
	}

	if err := f.SetSheetRow(sheetName, "A1", &headings); err != nil {
		return errors.Wrap(err, "failed to write headings")
	}

	for i := range notes {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "failed to address row")
		}
		row := Row(&notes[i])
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write row for %s", notes[i].Number)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 18); err != nil {
		return errors.Wrap(err, "failed to size columns")
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}
