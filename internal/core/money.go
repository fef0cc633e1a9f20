// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing signed monetary amounts entered by
// users and formatting them back for display.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered decimal string to a signed amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional leading sign and surrounding whitespace. Zero is rejected since a
// zero transaction has no effect on the projection.
//
// Examples:
//   ParseAmount("12.34")  -> 12.34, nil
//   ParseAmount("-12,34") -> -12.34, nil
//   ParseAmount("+1200")  -> 1200, nil
//   ParseAmount("0")      -> 0, ErrZeroAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")

	sign := ""
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		sign, s = s[:1], s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 || s == "" || s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}

	amount, err := decimal.NewFromString(strings.TrimPrefix(sign, "+") + s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.IsZero() {
		return decimal.Zero, ErrZeroAmount
	}
	return amount, nil
}

// FormatAmount renders an amount with two decimals and an explicit sign for
// inflows, e.g. "+500.00" or "-1200.00".
func FormatAmount(a decimal.Decimal) string {
	s := a.StringFixed(2)
	if a.IsPositive() {
		return "+" + s
	}
	return s
}
