package util

import (
	"testing"

	"daybook/internal"
)

func TestCoerceFloat(t *testing.T) {
	cases := []struct {
		cell internal.Cell
		want float64
		ok   bool
	}{
		{internal.NumberCell(12.5), 12.5, true},
		{internal.TextCell("1000"), 1000, true},
		{internal.TextCell("1,000"), 1000, true},
		{internal.TextCell("1.000"), 1000, true},
		{internal.TextCell("1 234,5"), 1234.5, true},
		{internal.TextCell("12,5"), 12.5, true},
		{internal.TextCell("abc"), 0, false},
		{internal.TextCell(""), 0, false},
		{internal.EmptyCell(), 0, false},
	}
	for _, tc := range cases {
		got, ok := CoerceFloat(tc.cell)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("CoerceFloat(%v)=%v,%v want %v,%v", tc.cell, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFloatOrZero(t *testing.T) {
	if v := FloatOrZero(internal.TextCell("junk")); v != 0 {
		t.Fatalf("junk=%v", v)
	}
	if v := FloatOrZero(internal.NumberCell(3)); v != 3 {
		t.Fatalf("number=%v", v)
	}
}

func TestIntOrZero(t *testing.T) {
	if v := IntOrZero(internal.TextCell("7")); v != 7 {
		t.Fatalf("text=%d", v)
	}
	if v := IntOrZero(internal.NumberCell(2.9)); v != 2 {
		t.Fatalf("truncation=%d", v)
	}
}

func TestNormalizeNumericToken(t *testing.T) {
	cases := map[string]string{
		"1.234.567": "1234567",
		"1,234,567": "1234567",
		"12,5":      "12.5",
		"1 000": "1000",
		"42":        "42",
	}
	for in, want := range cases {
		if got := NormalizeNumericToken(in); got != want {
			t.Fatalf("NormalizeNumericToken(%q)=%q want %q", in, got, want)
		}
	}
}
