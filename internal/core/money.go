// Package core provides the expense ledger domain types.
//
// This file contains amount parsing and the display formats used in replies.
package core

import (
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ParseAmount converts user input into a positive exact decimal.
//
// Both dot (12.5) and comma (12,5) are accepted as the decimal separator.
// Signs, exponents, thousands separators and zero are rejected.
//
// Examples:
//
//	ParseAmount("15000")  -> 15000, nil
//	ParseAmount("12,50")  -> 12.5, nil
//	ParseAmount("-3")     -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if r > unicode.MaxASCII || !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount rounded to a whole number with comma
// thousands separators, e.g. 1234567.5 -> "1,234,568".
func FormatAmount(d decimal.Decimal) string {
	r := d.Round(0)
	if r.Abs().LessThan(decimal.New(1, 18)) {
		return humanize.Comma(r.IntPart())
	}
	return humanize.BigComma(r.BigInt())
}

// FormatPercent renders a percentage with exactly one decimal place.
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(1)
}
