package pipeline

import (
	"daybook/internal"
	"daybook/internal/util"
)

// SummableColumns are the quantity and amount columns (I..O, S..U) whose
// data-row sums land in the summary row.
var SummableColumns = []int{8, 9, 10, 11, 12, 13, 14, 18, 19, 20}

// differenceSourceCols are L, M, N and the received-quantity column O.
var differenceSourceCols = [4]int{11, 12, 13, 14}

// RecomputeAggregates rewrites the summary-row sums and the per-row
// difference flags in place and returns the same sheet. The summary row
// is a pure function of the data rows, so rerunning this on its own
// output is a no-op.
func RecomputeAggregates(sheet *internal.Sheet) *internal.Sheet {
	recomputeSums(sheet)
	recomputeDifferenceFlags(sheet)
	return sheet
}

func recomputeSums(sheet *internal.Sheet) {
	if len(sheet.Rows) <= internal.DataRowStart {
		return
	}

	maxCol := SummableColumns[len(SummableColumns)-1]
	summary := sheet.Rows[internal.SummaryRowIndex]
	for len(summary) <= maxCol {
		summary = append(summary, internal.EmptyCell())
	}

	for _, col := range SummableColumns {
		total := 0.0
		for i := internal.DataRowStart; i < len(sheet.Rows); i++ {
			if v, ok := util.CoerceFloat(sheet.Rows[i].Cell(col)); ok {
				total += v
			}
		}
		// A zero sum is written as 0, not cleared.
		summary[col] = internal.NumberCell(total)
	}
	sheet.Rows[internal.SummaryRowIndex] = summary
	if maxCol+1 > sheet.ColCount {
		sheet.ColCount = maxCol + 1
	}
}

func recomputeDifferenceFlags(sheet *internal.Sheet) {
	for i := internal.DataRowStart; i < len(sheet.Rows); i++ {
		row := sheet.Rows[i]
		if len(row) <= internal.DifferenceCol {
			continue
		}
		row[internal.DifferenceCol] = differenceFlag(row)
	}
}

// differenceFlag compares L+M+N against O. Empty source cells count as
// zero, but a cell that cannot be coerced at all blanks the flag rather
// than producing a bogus comparison.
func differenceFlag(row internal.Row) internal.Cell {
	var vals [4]float64
	for k, col := range differenceSourceCols {
		cell := row.Cell(col)
		if cell.IsEmpty() {
			continue
		}
		v, ok := util.CoerceFloat(cell)
		if !ok {
			return internal.EmptyCell()
		}
		vals[k] = v
	}
	if vals[0]+vals[1]+vals[2] != vals[3] {
		return internal.TextCell(internal.DifferenceFlag)
	}
	return internal.EmptyCell()
}
