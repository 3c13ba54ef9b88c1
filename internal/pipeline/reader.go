package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// RawSheet is one sheet as a reader delivered it: name plus a row-major
// matrix of raw cells.
type RawSheet struct {
	Name  string
	Cells [][]RawCell
}

// Uploads are bounded to the first sheets of a workbook; anything past
// this is ignored.
const maxSheetsPerWorkbook = 3

// ReadWorkbook sniffs the payload and dispatches to the matching reader.
// Returns the loaded raw sheets and the workbook's total sheet count.
func ReadWorkbook(blob []byte, filename string) ([]RawSheet, int, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".xls" {
		// Legacy Korean order systems export HTML tables under a .xls
		// extension; the BIFF reader chokes on those.
		if sniffHTML(blob) {
			sheet, err := readHTMLTable(blob)
			if err != nil {
				return nil, 0, err
			}
			return []RawSheet{sheet}, 1, nil
		}
		return readLegacyXLS(blob)
	}
	return readXLSX(blob)
}

func sniffHTML(blob []byte) bool {
	head := blob
	if len(head) > 100 {
		head = head[:100]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<html")) ||
		bytes.Contains(lower, []byte("<!doctype")) ||
		bytes.Contains(lower, []byte("<meta"))
}

func readXLSX(blob []byte) ([]RawSheet, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return nil, 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	total := len(names)
	if len(names) > maxSheetsPerWorkbook {
		names = names[:maxSheetsPerWorkbook]
	}

	out := make([]RawSheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		cells := make([][]RawCell, len(rows))
		for i, row := range rows {
			line := make([]RawCell, len(row))
			for j, value := range row {
				line[j] = rawFromXLSX(f, name, j, i, value)
			}
			cells[i] = line
		}
		out = append(out, RawSheet{Name: name, Cells: cells})
	}
	return out, total, nil
}

// rawFromXLSX types a cell using the sheet's own cell type where the
// file records one; untyped cells fall back to a numeric parse of the
// raw value (dates arrive here as their serial numbers).
func rawFromXLSX(f *excelize.File, sheet string, col, row int, value string) RawCell {
	if strings.TrimSpace(value) == "" {
		return RawCell{}
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err == nil {
		ctype, err := f.GetCellType(sheet, axis)
		if err == nil {
			switch ctype {
			case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
				return RawCell{Kind: RawText, Text: value}
			}
		}
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return RawCell{Kind: RawNumber, Num: n}
	}
	return RawCell{Kind: RawText, Text: value}
}

func readLegacyXLS(blob []byte) ([]RawSheet, int, error) {
	wb, err := xls.OpenReader(bytes.NewReader(blob), "utf-8")
	if err != nil {
		return nil, 0, fmt.Errorf("open legacy xls: %w", err)
	}

	total := wb.NumSheets()
	count := total
	if count > maxSheetsPerWorkbook {
		count = maxSheetsPerWorkbook
	}

	out := make([]RawSheet, 0, count)
	for i := 0; i < count; i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		cells := make([][]RawCell, 0, int(ws.MaxRow)+1)
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				cells = append(cells, nil)
				continue
			}
			width := row.LastCol()
			line := make([]RawCell, width)
			for c := 0; c < width; c++ {
				line[c] = rawFromString(row.Col(c))
			}
			cells = append(cells, line)
		}
		out = append(out, RawSheet{Name: ws.Name, Cells: cells})
	}
	return out, total, nil
}

// readHTMLTable reads the first <table> of an HTML payload as a single
// sheet, header row included.
func readHTMLTable(blob []byte) (RawSheet, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return RawSheet{}, err
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return RawSheet{}, errors.New("html workbook has no table")
	}

	cells := [][]RawCell{}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		line := []RawCell{}
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			line = append(line, rawFromString(strings.TrimSpace(cell.Text())))
		})
		cells = append(cells, line)
	})
	return RawSheet{Name: "Sheet1", Cells: cells}, nil
}

// rawFromString is the fallback typing for readers that only see text.
// Zero-padded tokens stay text: they are product codes, not quantities.
func rawFromString(value string) RawCell {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return RawCell{}
	}
	if len(trimmed) > 1 && trimmed[0] == '0' && !strings.Contains(trimmed, ".") {
		return RawCell{Kind: RawText, Text: value}
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return RawCell{Kind: RawNumber, Num: n}
	}
	return RawCell{Kind: RawText, Text: value}
}
