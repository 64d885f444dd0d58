// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and formatting them for storage and display.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to a positive amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35 (half-up)
//	ParseAmount("12.344") -> 12.34
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, invalid("amount", raw, "must not be empty")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, invalid("amount", raw, "must be positive")
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, invalid("amount", raw, "malformed decimal")
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, invalid("amount", raw, "malformed decimal")
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid("amount", raw, "malformed decimal")
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, invalid("amount", raw, "must be positive")
	}
	return d, nil
}

// FormatAmount renders an amount with exactly two fractional digits, the form
// used for persistence and wire messages.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
