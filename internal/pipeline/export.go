package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"daybook/internal"
)

// ExportSheetToXLSX writes a stored sheet back out as a plain workbook,
// one excelize sheet with the canonical matrix values.
func ExportSheetToXLSX(sheet *internal.Sheet, outputPath string) error {
	f := excelize.NewFile()
	name := f.GetSheetName(0)
	if sheet.Name != "" {
		_ = f.SetSheetName(name, sheet.Name)
		name = sheet.Name
	}

	writeRows(f, name, sheet.Rows, 1)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportRecordsToXLSX writes a date's accumulated records under the
// stored header snapshot, so the export looks like the sheet the
// records came from.
func ExportRecordsToXLSX(headerRows []internal.Row, records []internal.TransactionRecord, outputPath string) error {
	f := excelize.NewFile()
	name := f.GetSheetName(0)

	next := writeRows(f, name, headerRows, 1)
	for _, rec := range records {
		row := rec.RawRow
		if len(row) == 0 {
			row = internal.Row{
				internal.TextCell(rec.CompanyName),
				internal.EmptyCell(),
				internal.EmptyCell(),
				internal.EmptyCell(),
				internal.TextCell(rec.ProductCode),
				internal.TextCell(rec.ProductName),
				internal.TextCell(rec.ProductOption),
				internal.NumberCell(rec.UnitPrice),
			}
		}
		writeRow(f, name, row, next)
		next++
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeRows(f *excelize.File, sheet string, rows []internal.Row, startRow int) int {
	r := startRow
	for _, row := range rows {
		writeRow(f, sheet, row, r)
		r++
	}
	return r
}

func writeRow(f *excelize.File, sheet string, row internal.Row, r int) {
	for j, c := range row {
		if c.IsEmpty() {
			continue
		}
		axis, err := excelize.CoordinatesToCellName(j+1, r)
		if err != nil {
			continue
		}
		if n, ok := c.Number(); ok {
			_ = f.SetCellValue(sheet, axis, n)
		} else {
			_ = f.SetCellValue(sheet, axis, c.Text())
		}
	}
}
