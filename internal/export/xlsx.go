package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"shifttally/internal/core"
)

// XLSXRenderer renders a snapshot as a workbook with a day summary, the
// per-shift breakdown and the full history.
type XLSXRenderer struct{}

func (XLSXRenderer) Render(ctx context.Context, snap Snapshot) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const (
		summarySheet = "Summary"
		shiftsSheet  = "Shifts"
		historySheet = "History"
	)

	// The default sheet becomes the summary.
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", nil, fmt.Errorf("rename summary sheet: %w", err)
	}

	setRow := func(sheet string, row int, values ...interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := setRow(summarySheet, 1, "Chat", snap.ChatID); err != nil {
		return "", nil, fmt.Errorf("write summary: %w", err)
	}
	if err := setRow(summarySheet, 2, "Business date", snap.BusinessDate.String()); err != nil {
		return "", nil, fmt.Errorf("write summary: %w", err)
	}
	if err := setRow(summarySheet, 4, "Currency", "Total", "Invoices"); err != nil {
		return "", nil, fmt.Errorf("write summary: %w", err)
	}
	row := 5
	for _, c := range core.Currencies() {
		bucket := snap.Day[c]
		if err := setRow(summarySheet, row, string(c), bucket.Total.String(), bucket.Invoices); err != nil {
			return "", nil, fmt.Errorf("write summary: %w", err)
		}
		row++
	}

	if _, err := f.NewSheet(shiftsSheet); err != nil {
		return "", nil, fmt.Errorf("create shifts sheet: %w", err)
	}
	if err := setRow(shiftsSheet, 1, "Shift", "Currency", "Total", "Invoices"); err != nil {
		return "", nil, fmt.Errorf("write shifts: %w", err)
	}
	row = 2
	for _, shift := range core.Shifts() {
		totals := snap.Shifts[shift]
		for _, c := range core.Currencies() {
			bucket := totals[c]
			if err := setRow(shiftsSheet, row, string(shift), string(c), bucket.Total.String(), bucket.Invoices); err != nil {
				return "", nil, fmt.Errorf("write shifts: %w", err)
			}
			row++
		}
	}

	if _, err := f.NewSheet(historySheet); err != nil {
		return "", nil, fmt.Errorf("create history sheet: %w", err)
	}
	if err := setRow(historySheet, 1, "Recorded at", "Shift", "Currency", "Amount"); err != nil {
		return "", nil, fmt.Errorf("write history: %w", err)
	}
	for i, e := range snap.Entries {
		if err := setRow(historySheet, i+2,
			e.RecordedAt.Format("2006-01-02 15:04:05"),
			string(e.Shift),
			string(e.Currency),
			e.Amount.String(),
		); err != nil {
			return "", nil, fmt.Errorf("write history: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, fmt.Errorf("serialize workbook: %w", err)
	}

	name := fmt.Sprintf("totals_%d_%s.xlsx", snap.ChatID, snap.BusinessDate)
	return name, buf.Bytes(), nil
}
