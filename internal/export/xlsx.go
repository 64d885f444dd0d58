// Package export renders ledger transactions as spreadsheet downloads.
package export

import (
	"fmt"
	"io"

	"budget/internal/core"
	"budget/internal/sheets"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteMonthXLSX writes the transactions of month as a single-sheet workbook
// with the same columns as the Google Sheets export, followed by a total row.
func WriteMonthXLSX(w io.Writer, month core.MonthKey, txs []core.Transaction) error {
	if err := month.Validate(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := string(month)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := sheets.Header
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	total := decimal.Zero
	for i, t := range txs {
		row := sheets.Row(t)
		// Amount as a number so the spreadsheet can sum it.
		row[2] = t.Amount.InexactFloat64()
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		total = total.Add(t.Amount)
	}

	totalRow := len(txs) + 2
	if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", totalRow), "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("C%d", totalRow), total.InexactFloat64()); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("create amount style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "C2", fmt.Sprintf("C%d", totalRow), style); err != nil {
		return err
	}

	widths := map[string]float64{"A": 12, "B": 30, "C": 12, "D": 14, "E": 12, "F": 38}
	for col, width := range widths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
