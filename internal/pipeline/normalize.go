package pipeline

import (
	"math"
	"strings"
	"time"

	"daybook/internal"
	"daybook/internal/util"
)

// RawKind tags a reader value before normalization.
type RawKind int

const (
	RawEmpty RawKind = iota
	RawNumber
	RawText
)

// RawCell is a cell exactly as a workbook reader delivered it.
type RawCell struct {
	Kind RawKind
	Num  float64
	Text string
}

// Serial date numbers count days from this anchor (the 1900 date system
// with the Lotus leap-year bug already absorbed).
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// NormalizeCell maps a raw reader value onto the canonical cell model:
// NaN/Inf numbers, whitespace-only text and the literal "nan" all become
// empty; other text is trimmed.
func NormalizeCell(raw RawCell) internal.Cell {
	switch raw.Kind {
	case RawNumber:
		if math.IsNaN(raw.Num) || math.IsInf(raw.Num, 0) {
			return internal.EmptyCell()
		}
		return internal.NumberCell(raw.Num)
	case RawText:
		trimmed := strings.TrimSpace(raw.Text)
		if trimmed == "" || strings.EqualFold(trimmed, "nan") {
			return internal.EmptyCell()
		}
		return internal.TextCell(trimmed)
	default:
		return internal.EmptyCell()
	}
}

// NormalizeMatrix converts a whole raw sheet. The payment-date column is
// additionally rendered as MM/DD, but only for data rows so the header
// text above it survives.
func NormalizeMatrix(raw [][]RawCell) []internal.Row {
	rows := make([]internal.Row, len(raw))
	for i, rawRow := range raw {
		row := make(internal.Row, len(rawRow))
		for j, rc := range rawRow {
			cell := NormalizeCell(rc)
			if j == internal.PaymentDateCol && i >= internal.DataRowStart {
				cell = NormalizePaymentDate(cell)
			}
			row[j] = cell
		}
		rows[i] = row
	}
	return rows
}

// NormalizePaymentDate renders a payment-date cell as MM/DD. Tried in
// order: serial day count, ISO-8601 text, already-slashed text, numeric
// text as a serial. Anything unconvertible is returned untouched rather
// than erroring; suppliers put free text in this column.
func NormalizePaymentDate(c internal.Cell) internal.Cell {
	if n, ok := c.Number(); ok {
		return internal.TextCell(serialToMonthDay(n))
	}
	text := c.Text()
	if text == "" {
		return c
	}
	if strings.Contains(text, "T") {
		if ts, ok := parseISOTimestamp(text); ok {
			return internal.TextCell(ts.Format("01/02"))
		}
		return c
	}
	if strings.Contains(text, "/") {
		parts := strings.Split(text, "/")
		if len(parts) >= 2 {
			return internal.TextCell(parts[0] + "/" + parts[1])
		}
		return c
	}
	if n, ok := util.CoerceFloat(internal.TextCell(text)); ok {
		return internal.TextCell(serialToMonthDay(n))
	}
	return c
}

func parseISOTimestamp(text string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func serialToMonthDay(days float64) string {
	return serialEpoch.Add(time.Duration(days * float64(24*time.Hour))).Format("01/02")
}
