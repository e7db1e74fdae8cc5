package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the order export.
const SheetName = "Orders"

// WriteOrdersXLSX writes the order export as a single-sheet workbook.
// Subtotal is stored as a number with two decimals so it sums in a spreadsheet.
func WriteOrdersXLSX(w io.Writer, rows []OrderRow, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "H1", bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			row.OrderNo,
			row.CreatedAt.In(loc).Format(TimeLayout),
			row.OrderType,
			row.PaymentMethod,
			row.Subtotal.Round(2).InexactFloat64(),
			row.Status,
			row.Source,
			row.Items,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if len(rows) > 0 {
		last := fmt.Sprintf("E%d", len(rows)+1)
		if err := f.SetCellStyle(SheetName, "E2", last, money); err != nil {
			return fmt.Errorf("apply money style: %w", err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "G", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "H", "H", 48); err != nil {
		return err
	}

	return f.Write(w)
}
