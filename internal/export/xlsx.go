package export

import (
	"fmt"
	"io"

	"billing/internal/model"

	"github.com/xuri/excelize/v2"
)

const scheduleSheet = "Installments"

// WriteScheduleXLSX writes the installment schedule of inv as a workbook with
// a short invoice summary above the table.
func WriteScheduleXLSX(w io.Writer, inv *model.Invoice) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", scheduleSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	summary := [][2]interface{}{
		{"Invoice", inv.InvoiceNo},
		{"Client", inv.ClientName},
		{"Currency", inv.Currency},
		{"Total", inv.TotalAmount.InexactFloat64()},
		{"Balance Due", inv.BalanceDue.InexactFloat64()},
	}
	for i, row := range summary {
		r := i + 1
		if err := f.SetCellValue(scheduleSheet, fmt.Sprintf("A%d", r), row[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(scheduleSheet, fmt.Sprintf("B%d", r), row[1]); err != nil {
			return err
		}
	}

	headerRow := len(summary) + 2
	headers := []string{"#", "Due Date", "Amount"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := f.SetCellValue(scheduleSheet, cell, header); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, headerRow)
		end, _ := excelize.CoordinatesToCellName(len(headers), headerRow)
		_ = f.SetCellStyle(scheduleSheet, start, end, style)
	}

	for i, in := range inv.Installments {
		row := headerRow + 1 + i
		if err := f.SetCellValue(scheduleSheet, fmt.Sprintf("A%d", row), in.Sequence); err != nil {
			return err
		}
		if err := f.SetCellValue(scheduleSheet, fmt.Sprintf("B%d", row), in.DueDate.Format("2006-01-02")); err != nil {
			return err
		}
		if err := f.SetCellValue(scheduleSheet, fmt.Sprintf("C%d", row), in.Amount.InexactFloat64()); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(scheduleSheet, "A", "A", 14)
	_ = f.SetColWidth(scheduleSheet, "B", "C", 16)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
