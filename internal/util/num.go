package util

import (
	"regexp"
	"strconv"
	"strings"

	"daybook/internal"
)

var (
	reDotGrouped   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reCommaGrouped = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

// CoerceFloat turns a canonical cell into a float64. Text cells go
// through grouping-separator normalization first, so "1 234,5" and
// "1,000" both coerce. Returns false for empty or non-numeric cells.
func CoerceFloat(c internal.Cell) (float64, bool) {
	if n, ok := c.Number(); ok {
		return n, true
	}
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(NormalizeNumericToken(text), 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// FloatOrZero is CoerceFloat with non-numeric cells counting as 0.
func FloatOrZero(c internal.Cell) float64 {
	v, _ := CoerceFloat(c)
	return v
}

func IntOrZero(c internal.Cell) int {
	return int(FloatOrZero(c))
}

func NormalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, "\u00a0", " ")
	compact = strings.ReplaceAll(compact, " ", "")
	if reDotGrouped.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if reCommaGrouped.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
