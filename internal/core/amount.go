// Package core holds the ledger domain types shared by every component.
//
// This file parses whole-unit amounts from user input. The tracked
// currencies carry no minor unit, so fractional input is rejected rather
// than rounded.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a positive whole-unit amount string to int64.
//
// Grouping separators ("." or ",") are accepted when they delimit groups
// of exactly three digits. Signs, decimals and mixed separators are
// rejected, as are zero and overflowing values.
//
// Examples:
//
//	ParseAmount("15000")   -> 15000, nil
//	ParseAmount("15.000")  -> 15000, nil
//	ParseAmount("15,000")  -> 15000, nil
//	ParseAmount("-3")      -> 0, ErrInvalidAmount
//	ParseAmount("12.34")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}

	sep := ""
	if strings.ContainsRune(s, '.') {
		sep = "."
	}
	if strings.ContainsRune(s, ',') {
		if sep != "" {
			// Mixed separators are ambiguous.
			return 0, ErrInvalidAmount
		}
		sep = ","
	}

	digits := s
	if sep != "" {
		groups := strings.Split(s, sep)
		if len(groups[0]) == 0 || len(groups[0]) > 3 {
			return 0, ErrInvalidAmount
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return 0, ErrInvalidAmount
			}
		}
		digits = strings.Join(groups, "")
	}

	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
