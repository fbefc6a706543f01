// Package money parses OCR money tokens into fixed two-decimal amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// currency symbols we strip before looking for a numeric run
const symbols = "$€£¥₹"

// Parse converts one text token into a signed amount rounded to two decimal
// places (half away from zero). Negative values are recognized, in priority
// order, as parenthesized digits "(12.34)", trailing minus "12.34-", then
// leading minus "-12.34". Returns an error when no numeric run is found;
// callers treat that as "not money" and try another line shape.
func Parse(token string) (decimal.Decimal, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		return decimal.Zero, fmt.Errorf("parse money: empty token")
	}

	neg := false
	if open := strings.IndexByte(s, '('); open >= 0 {
		if close := strings.IndexByte(s[open:], ')'); close > 0 {
			inner := s[open+1 : open+close]
			if containsDigit(inner) {
				neg = true
				s = inner
			}
		}
	}

	// strip currency symbols and whitespace before sign detection so
	// tokens like "$ -1.00" or "-$1.00" both resolve
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(symbols, r) || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)

	if !neg {
		if strings.HasSuffix(s, "-") {
			neg = true
			s = strings.TrimSuffix(s, "-")
		} else if strings.HasPrefix(s, "-") {
			neg = true
			s = strings.TrimPrefix(s, "-")
		}
	}

	// decimal-separator disambiguation: with both "," and ".", the comma is
	// a thousands separator; with only ",", it is the decimal point
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	run := numericRun(s)
	if run == "" {
		return decimal.Zero, fmt.Errorf("parse money: no numeric run in %q", token)
	}
	if strings.HasPrefix(run, ".") {
		run = "0" + run
	}

	d, err := decimal.NewFromString(run)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money: %q: %w", token, err)
	}
	if neg {
		d = d.Neg()
	}
	return Round2(d), nil
}

// numericRun extracts the first contiguous digits-and-one-dot run, capping
// the fraction at four digits.
func numericRun(s string) string {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' || r == '.' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	var b strings.Builder
	sawDot := false
	frac := 0
	sawDigit := false
	for _, r := range s[start:] {
		switch {
		case r >= '0' && r <= '9':
			if sawDot {
				if frac == 4 {
					return b.String()
				}
				frac++
			}
			sawDigit = true
			b.WriteRune(r)
		case r == '.' && !sawDot:
			sawDot = true
			b.WriteRune(r)
		default:
			out := strings.TrimSuffix(b.String(), ".")
			if !sawDigit {
				return ""
			}
			return out
		}
	}
	if !sawDigit {
		return ""
	}
	return strings.TrimSuffix(b.String(), ".")
}

func containsDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// Round2 re-rounds an amount to two decimal places, half away from zero.
// Downstream sums call this after every addition so amounts are never
// silently truncated.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Format renders an amount with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// HasCurrencyHint reports whether the token carries a currency symbol or an
// explicit decimal separator. Bare integers parse as money, but a line made
// of one alone is too ambiguous to treat as a price-only line.
func HasCurrencyHint(token string) bool {
	if strings.ContainsAny(token, symbols) {
		return true
	}
	return strings.ContainsAny(token, ".,")
}
