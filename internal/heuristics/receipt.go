// Package heuristics converts ragged OCR line sequences into candidate
// receipt items and totals without any external model.
package heuristics

import (
	"github.com/shopspring/decimal"

	"github.com/mpalumbo7/receipt-parser/internal/money"
)

// ItemCandidate is one extracted purchasable line.
// LineTotal is never negative; a line whose computed total would be negative
// is a discount or adjustment, not an item, and is never emitted.
type ItemCandidate struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Receipt is the candidate result of one heuristic extraction.
// Immutable after Extract returns it.
type Receipt struct {
	Items    []ItemCandidate
	Subtotal *decimal.Decimal
	Tax      *decimal.Decimal
	Tip      *decimal.Decimal
	Total    *decimal.Decimal
	Cash     *decimal.Decimal
	Change   *decimal.Decimal
	IsSane   bool
}

// setField assigns a totals field once; later writers for the same field
// are ignored (first writer wins).
func (r *Receipt) setField(f TotalsField, amt decimal.Decimal) {
	slot := r.fieldSlot(f)
	if slot == nil || *slot != nil {
		return
	}
	v := amt
	*slot = &v
}

func (r *Receipt) fieldSlot(f TotalsField) **decimal.Decimal {
	switch f {
	case FieldSubtotal:
		return &r.Subtotal
	case FieldTax:
		return &r.Tax
	case FieldTip:
		return &r.Tip
	case FieldTotal:
		return &r.Total
	case FieldCash:
		return &r.Cash
	case FieldChange:
		return &r.Change
	}
	return nil
}

// ItemsSum returns the items' line totals summed with re-rounding after
// each addition.
func (r *Receipt) ItemsSum() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = money.Round2(sum.Add(it.LineTotal))
	}
	return sum
}
