package pipeline

import (
	"encoding/json"
	"testing"

	"daybook/internal"
)

func blankRow(width int) internal.Row {
	row := make(internal.Row, width)
	for i := range row {
		row[i] = internal.EmptyCell()
	}
	return row
}

func testSheet(dataRows ...internal.Row) *internal.Sheet {
	rows := []internal.Row{blankRow(22), blankRow(22), blankRow(22)}
	rows = append(rows, dataRows...)
	return &internal.Sheet{Name: "0812", Type: internal.SheetOrder, Rows: rows, RowCount: len(rows)}
}

func TestRecomputeSums(t *testing.T) {
	r1 := blankRow(22)
	r1[8] = internal.NumberCell(10)
	r1[19] = internal.NumberCell(5000)
	r2 := blankRow(22)
	r2[8] = internal.TextCell("2,000")
	r2[19] = internal.TextCell("junk")

	sheet := testSheet(r1, r2)
	// Stale summary values must be overwritten, not merged.
	sheet.Rows[internal.SummaryRowIndex][8] = internal.NumberCell(999)

	RecomputeAggregates(sheet)

	summary := sheet.Rows[internal.SummaryRowIndex]
	if v, _ := summary.Cell(8).Number(); v != 2010 {
		t.Fatalf("col8 sum=%v", v)
	}
	if v, _ := summary.Cell(19).Number(); v != 5000 {
		t.Fatalf("col19 sum=%v", v)
	}
	// Columns with no numeric data sum to an explicit 0.
	if v, ok := summary.Cell(9).Number(); !ok || v != 0 {
		t.Fatalf("col9 sum=%v ok=%v", v, ok)
	}
}

func TestRecomputeSumsShortSheet(t *testing.T) {
	sheet := &internal.Sheet{Rows: []internal.Row{blankRow(22), blankRow(22)}}
	RecomputeAggregates(sheet)
	if !sheet.Rows[0].Cell(8).IsEmpty() {
		t.Fatal("short sheet was modified")
	}
}

func TestRecomputeSumsPadsNarrowSummaryRow(t *testing.T) {
	data := blankRow(22)
	data[20] = internal.NumberCell(7)
	sheet := testSheet(data)
	sheet.Rows[internal.SummaryRowIndex] = internal.Row{}

	RecomputeAggregates(sheet)
	if v, _ := sheet.Rows[internal.SummaryRowIndex].Cell(20).Number(); v != 7 {
		t.Fatalf("padded sum=%v", v)
	}
}

func TestDifferenceFlag(t *testing.T) {
	mismatch := blankRow(22)
	mismatch[11] = internal.NumberCell(1)
	mismatch[12] = internal.NumberCell(2)
	mismatch[13] = internal.NumberCell(3)
	mismatch[14] = internal.NumberCell(5)

	match := blankRow(22)
	match[11] = internal.NumberCell(2)
	match[14] = internal.NumberCell(2)

	junk := blankRow(22)
	junk[11] = internal.TextCell("보류")
	junk[14] = internal.NumberCell(4)
	junk[internal.DifferenceCol] = internal.TextCell(internal.DifferenceFlag)

	sheet := testSheet(mismatch, match, junk)
	RecomputeAggregates(sheet)

	if got := sheet.Rows[3].Cell(internal.DifferenceCol).Text(); got != internal.DifferenceFlag {
		t.Fatalf("mismatch flag=%q", got)
	}
	if !sheet.Rows[4].Cell(internal.DifferenceCol).IsEmpty() {
		t.Fatal("matching row was flagged")
	}
	// An uncoercible source cell clears any stale flag.
	if !sheet.Rows[5].Cell(internal.DifferenceCol).IsEmpty() {
		t.Fatal("junk row kept its flag")
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	r1 := blankRow(22)
	r1[8] = internal.NumberCell(3)
	r1[11] = internal.NumberCell(1)
	r1[14] = internal.NumberCell(4)
	sheet := testSheet(r1)

	RecomputeAggregates(sheet)
	first, _ := json.Marshal(sheet.Rows)
	RecomputeAggregates(sheet)
	second, _ := json.Marshal(sheet.Rows)
	if string(first) != string(second) {
		t.Fatal("recompute is not a fixed point")
	}
}
