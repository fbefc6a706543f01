package heuristics

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/mpalumbo7/receipt-parser/internal/money"
)

// TotalsField tags the totals slot a label line writes to.
type TotalsField int

const (
	FieldNone TotalsField = iota
	FieldSubtotal
	FieldTax
	FieldTip
	FieldTotal
	FieldCash
	FieldChange
)

// labelFields maps printed label text to its totals slot. More specific
// labels come first so "subtotal" and "total amount" win over "total".
var labelFields = []struct {
	label string
	field TotalsField
}{
	{"subtotal", FieldSubtotal},
	{"sub total", FieldSubtotal},
	{"total amount", FieldTotal},
	{"amount due", FieldTotal},
	{"sales tax", FieldTax},
	{"gratuity", FieldTip},
	{"service", FieldTip},
	{"cash", FieldCash},
	{"change", FieldChange},
	{"tax", FieldTax},
	{"tip", FieldTip},
	{"total", FieldTotal},
}

// discountWords flag metadata lines that must never become items.
var discountWords = []string{
	"discount", "promo", "coupon", "adjustment", "refund", "void", "savings",
}

// MatchTotalsLabel reports whether the line is a totals label, which slot it
// maps to, and any inline remainder (usually the printed amount).
func MatchTotalsLabel(line string) (TotalsField, string, bool) {
	norm := strings.ToLower(strings.TrimSpace(line))
	for _, lf := range labelFields {
		if !strings.HasPrefix(norm, lf.label) {
			continue
		}
		rest := norm[len(lf.label):]
		if rest != "" {
			r := []rune(rest)[0]
			// label must end at a word boundary ("totally" is not "total")
			if unicode.IsLetter(r) {
				continue
			}
		}
		rest = strings.TrimLeft(rest, " \t:=.-")
		return lf.field, strings.TrimSpace(rest), true
	}
	return FieldNone, "", false
}

// isDiscountLine reports whether the line is discount/promo wording or
// carries a negative money token. Such lines are metadata, never items.
func isDiscountLine(line string) bool {
	norm := strings.ToLower(line)
	for _, w := range discountWords {
		if strings.Contains(norm, w) {
			return true
		}
	}
	for _, tok := range strings.Fields(line) {
		if amt, err := money.Parse(tok); err == nil && amt.Sign() < 0 {
			return true
		}
	}
	return false
}

// isMoneyOnly reports whether the whole line is a single money token.
// A bare integer does not qualify; it needs a currency symbol or a decimal
// separator to count as a price-only line.
func isMoneyOnly(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	if !money.HasCurrencyHint(s) {
		return false
	}
	_, err := money.Parse(s)
	return err == nil
}

// trailingMoney returns the line's last token parsed as money, requiring a
// currency hint so quantities are not mistaken for prices.
func trailingMoney(line string) (decimal.Decimal, string, bool) {
	toks := strings.Fields(line)
	if len(toks) < 2 {
		return decimal.Zero, "", false
	}
	last := toks[len(toks)-1]
	if !money.HasCurrencyHint(last) {
		return decimal.Zero, "", false
	}
	amt, err := money.Parse(last)
	if err != nil {
		return decimal.Zero, "", false
	}
	return amt, strings.Join(toks[:len(toks)-1], " "), true
}

// endsInPrice reports whether the line's last token is a money token.
func endsInPrice(line string) bool {
	_, _, ok := trailingMoney(line)
	return ok
}

// looksLikeItemName accepts lines with letters that are not short all-caps
// noise (section headers, tax flags).
func looksLikeItemName(line string) bool {
	s := strings.TrimSpace(line)
	hasLetter := false
	hasLower := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				hasLower = true
			}
		}
	}
	if !hasLetter {
		return false
	}
	if !hasLower && len(s) <= 5 {
		return false
	}
	return true
}

// parseQtyToken recognizes "2", "2x" and "x2" as quantities.
func parseQtyToken(tok string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(tok))
	s = strings.TrimSuffix(s, "x")
	s = strings.TrimPrefix(s, "x")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 999 {
		return 0, false
	}
	return n, true
}

// quantityIn scans a description for an embedded quantity token, e.g. the
// "2x" in "Cookie 2x". Returns 1 when none is present.
func quantityIn(desc string) int {
	toks := strings.Fields(desc)
	for i, tok := range toks {
		lower := strings.ToLower(tok)
		if strings.HasPrefix(lower, "x") || strings.HasSuffix(lower, "x") {
			if n, ok := parseQtyToken(tok); ok {
				return n
			}
		}
		// "2 x" split across tokens
		if i+1 < len(toks) && strings.EqualFold(toks[i+1], "x") {
			if n, ok := parseQtyToken(tok); ok {
				return n
			}
		}
	}
	return 1
}

// hasQuantityToken reports whether any token in the line reads as an
// explicit quantity marker ("2x", "x2", "2 x") or a leading bare integer.
func hasQuantityToken(line string) bool {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false
	}
	if _, err := strconv.Atoi(toks[0]); err == nil {
		return true
	}
	return quantityIn(line) != 1
}

// stripQuantity removes the first embedded quantity token from a description.
func stripQuantity(desc string) string {
	toks := strings.Fields(desc)
	out := make([]string, 0, len(toks))
	removed := false
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		lower := strings.ToLower(tok)
		if !removed && (strings.HasPrefix(lower, "x") || strings.HasSuffix(lower, "x")) {
			if _, ok := parseQtyToken(tok); ok {
				removed = true
				continue
			}
		}
		if !removed && i+1 < len(toks) && strings.EqualFold(toks[i+1], "x") {
			if _, ok := parseQtyToken(tok); ok {
				removed = true
				i++ // consume the "x" as well
				continue
			}
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}
