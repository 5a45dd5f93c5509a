package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/phpdave11/gofpdf"

	"shifttally/internal/core"
)

// PDFRenderer renders a one-page A4 summary of the business day.
// Currency codes are used instead of symbols: the built-in PDF fonts
// have no Khmer glyphs.
type PDFRenderer struct{}

func (PDFRenderer) Render(ctx context.Context, snap Snapshot) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Daily totals - chat %d", snap.ChatID))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Business date: %s", snap.BusinessDate))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(40, 8, "Currency", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Invoices", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	for _, c := range core.Currencies() {
		bucket := snap.Day[c]
		pdf.CellFormat(40, 8, string(c), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 8, bucket.Total.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%d", bucket.Invoices), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "By shift")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	for _, shift := range core.Shifts() {
		totals := snap.Shifts[shift]
		for _, c := range core.Currencies() {
			bucket := totals[c]
			if bucket.Invoices == 0 {
				continue
			}
			pdf.Cell(0, 7, fmt.Sprintf("%s  %s %s  (%d invoices)", shift, bucket.Total.String(), c, bucket.Invoices))
			pdf.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", nil, fmt.Errorf("serialize pdf: %w", err)
	}

	name := fmt.Sprintf("totals_%d_%s.pdf", snap.ChatID, snap.BusinessDate)
	return name, buf.Bytes(), nil
}
