// Package render draws delivery notes as PDF documents.
package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"example.com/albaranes/internal/models"
)

// SignatureBlock is drawn on signed documents
type SignatureBlock struct {
	Image    []byte // PNG
	ImageRef string
	SignedBy string
	Date     time.Time
}

// Input is everything a document is drawn from
type Input struct {
	Note      *models.DeliveryNote
	Project   *models.Project
	Client    *models.Client
	Signature *SignatureBlock
}

const (
	noItemsText        = "No items"
	itemsErrorText     = "Error processing items"
	reservedSignature  = "Signature space reserved"
	signatureImageName = "signature"
)

// PDFRenderer renders delivery notes with fpdf
type PDFRenderer struct {
	now func() time.Time
}

// NewPDFRenderer creates a PDF renderer
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{now: time.Now}
}

// Render draws the note. Missing or malformed items are drawn as placeholders;
// only a missing note or a PDF engine failure is an error.
func (r *PDFRenderer) Render(ctx context.Context, in Input) ([]byte, error) {
	if in.Note == nil {
		return nil, errors.New("render: delivery note is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	generatedAt := r.now()

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("%s  |  generated %s  |  page %d",
			in.Note.Number, generatedAt.Format("02/01/2006 15:04"), pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	r.header(pdf, tr, in)
	r.parties(pdf, tr, in)
	r.items(pdf, tr, in.Note)
	r.notes(pdf, tr, in.Note)
	r.signature(pdf, tr, in.Signature)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to render PDF")
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) header(pdf *fpdf.Fpdf, tr func(string) string, in Input) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr("ALBARÁN"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr("Number: "+in.Note.Number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Date: "+in.Note.Date.Format("02/01/2006")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Status: "+string(in.Note.Status)), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (r *PDFRenderer) parties(pdf *fpdf.Fpdf, tr func(string) string, in Input) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr("Client"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if in.Client != nil {
		pdf.CellFormat(0, 5, tr(in.Client.Name), "", 1, "L", false, 0, "")
		if in.Client.CIF != "" {
			pdf.CellFormat(0, 5, tr("CIF: "+in.Client.CIF), "", 1, "L", false, 0, "")
		}
		if addr := formatAddress(in.Client.Address); addr != "" {
			pdf.CellFormat(0, 5, tr(addr), "", 1, "L", false, 0, "")
		}
	} else {
		pdf.CellFormat(0, 5, tr("-"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr("Project"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if in.Project != nil {
		pdf.CellFormat(0, 5, tr(in.Project.Name), "", 1, "L", false, 0, "")
		if in.Project.Description != "" {
			pdf.MultiCell(0, 5, tr(in.Project.Description), "", "L", false)
		}
	} else {
		pdf.CellFormat(0, 5, tr("-"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 80, "L"},
	{"Quantity", 25, "R"},
	{"Unit", 20, "C"},
	{"Unit price", 30, "R"},
	{"Amount", 30, "R"},
}

func (r *PDFRenderer) items(pdf *fpdf.Fpdf, tr func(string) string, note *models.DeliveryNote) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range columns {
		pdf.CellFormat(col.width, 7, tr(col.title), "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)

	rows, ok := itemRows(note.Items)
	switch {
	case len(note.Items) == 0:
		pdf.CellFormat(185, 7, tr(noItemsText), "1", 1, "C", false, 0, "")
	case !ok:
		pdf.CellFormat(185, 7, tr(itemsErrorText), "1", 1, "C", false, 0, "")
	default:
		for _, row := range rows {
			for i, col := range columns {
				pdf.CellFormat(col.width, 7, tr(row[i]), "1", 0, col.align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(155, 8, tr("Total"), "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, tr(note.Total.StringFixed(2)), "1", 1, "R", false, 0, "")
	pdf.Ln(4)
}

// itemRows formats every item, reporting false if any item cannot be drawn
func itemRows(items []models.LineItem) ([][]string, bool) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		if item.Description == "" || !item.Quantity.Valid || !item.Unit.Valid() {
			return nil, false
		}
		price := "-"
		if item.UnitPrice.Valid {
			price = item.UnitPrice.Decimal.StringFixed(2)
		}
		rows = append(rows, []string{
			item.Description,
			item.Quantity.Decimal.String(),
			string(item.Unit),
			price,
			item.Amount.StringFixed(2),
		})
	}
	return rows, true
}

func (r *PDFRenderer) notes(pdf *fpdf.Fpdf, tr func(string) string, note *models.DeliveryNote) {
	if note.Notes == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, tr("Notes"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr(note.Notes), "", "L", false)
	pdf.Ln(4)
}

func (r *PDFRenderer) signature(pdf *fpdf.Fpdf, tr func(string) string, sig *SignatureBlock) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, tr("Signature"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	if sig == nil {
		x, y := pdf.GetXY()
		pdf.Rect(x, y, 80, 30, "D")
		pdf.CellFormat(80, 30, tr(reservedSignature), "", 1, "C", false, 0, "")
		return
	}

	if len(sig.Image) > 0 {
		pdf.RegisterImageOptionsReader(signatureImageName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(sig.Image))
		if pdf.Ok() {
			x, y := pdf.GetXY()
			pdf.ImageOptions(signatureImageName, x, y, 60, 0, true, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		} else {
			pdf.ClearError()
			pdf.CellFormat(0, 6, tr("[signature image unavailable]"), "", 1, "L", false, 0, "")
		}
	}
	pdf.CellFormat(0, 6, tr("Signed by: "+sig.SignedBy), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Signed on: "+sig.Date.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
}

func formatAddress(a models.Address) string {
	out := a.Street
	for _, part := range []string{a.Zip, a.City, a.Country} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}
