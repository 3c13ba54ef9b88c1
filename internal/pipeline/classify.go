package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"daybook/internal"
)

type classifyRule struct {
	Type     internal.SheetType
	Keywords []string
}

// Rule order is the tie-break: receipt-inquiry and order-receipt names
// both contain the order keyword, so they must be probed first.
var classifyRules = []classifyRule{
	{internal.SheetReceiptInquiry, []string{"입고전표", "receipt-inquiry"}},
	{internal.SheetOrderReceipt, []string{"주문입고", "order-receipt"}},
	{internal.SheetOrder, []string{"주문서", "order"}},
}

// Classify assigns a semantic type from filename and sheet-name keywords.
// A name that matches more than one rule still gets the highest-priority
// type but carries a warning instead of being silently defaulted.
func Classify(filename, sheetName string) (internal.SheetType, []string) {
	fn := strings.ToLower(filename)
	sn := strings.ToLower(sheetName)

	var matched []internal.SheetType
	for _, rule := range classifyRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(fn, kw) || strings.Contains(sn, kw) {
				matched = append(matched, rule.Type)
				break
			}
		}
	}

	if len(matched) > 0 {
		var warnings []string
		if len(matched) > 1 {
			warnings = []string{fmt.Sprintf("ambiguous sheet classification %q/%q: matched %v, using %s", filename, sheetName, matched, matched[0])}
		}
		return matched[0], warnings
	}

	// Daily order tabs are often named by date alone ("0812"), so a digit
	// near the start of the sheet name counts as an order sheet.
	if digitInPrefix(sheetName, 4) {
		return internal.SheetOrder, nil
	}
	return internal.SheetOrder, []string{fmt.Sprintf("unclassified sheet %q/%q, defaulting to %s", filename, sheetName, internal.SheetOrder)}
}

func digitInPrefix(name string, n int) bool {
	for i, r := range name {
		if i >= n {
			break
		}
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
