package normalizer

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mpalumbo7/receipt-parser/internal/money"
)

// centsTolerance allows arithmetic drift of up to two cents from OCR noise
// and per-line rounding.
var centsTolerance = decimal.New(2, -2)

// Validator checks a normalized receipt for internal consistency before the
// worker trusts it over the heuristic result.
type Validator struct {
	logger *slog.Logger
	// maximum implied discount as a share of the raw items sum before a
	// low printed subtotal is rejected rather than read as a discount
	discountTolerance decimal.Decimal
}

func NewValidator(discountTolerance float64, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if discountTolerance <= 0 || discountTolerance >= 1 {
		discountTolerance = 0.60
	}
	return &Validator{
		logger:            logger,
		discountTolerance: decimal.NewFromFloat(discountTolerance),
	}
}

// Validate reports whether the receipt is internally consistent: schema tag
// and currency, per-line arithmetic, subtotal-vs-items reconciliation with
// discount tolerance, and total arithmetic. It never mutates its input; the
// returned error string is for the caller to append to the receipt's issues.
// The items sum is returned for reuse either way.
func (v *Validator) Validate(r *Receipt) (bool, string, decimal.Decimal) {
	itemsSum := decimal.Zero

	if r.Version != SchemaVersion {
		return false, fmt.Sprintf("unexpected version %q, want %q", r.Version, SchemaVersion), itemsSum
	}
	if r.Currency == "" {
		return false, "currency is empty", itemsSum
	}
	if len(r.Items) == 0 {
		return false, "no items", itemsSum
	}

	for i, it := range r.Items {
		if it.Description == "" {
			return false, fmt.Sprintf("item %d: empty description", i), itemsSum
		}
		if it.Quantity.Sign() < 0 || it.UnitPrice.Sign() < 0 || it.LineTotal.Sign() < 0 {
			return false, fmt.Sprintf("item %d (%s): negative quantity, unit price or line total", i, it.Description), itemsSum
		}
		expected := money.Round2(it.Quantity.Mul(it.UnitPrice))
		if expected.Sub(it.LineTotal).Abs().GreaterThan(centsTolerance) {
			return false, fmt.Sprintf("item %d (%s): line total mismatch: expected %s, got %s",
				i, it.Description, money.Format(expected), money.Format(it.LineTotal)), itemsSum
		}
		itemsSum = money.Round2(itemsSum.Add(it.LineTotal))
	}

	if r.Subtotal != nil {
		diff := itemsSum.Sub(*r.Subtotal)
		if diff.Abs().GreaterThan(centsTolerance) {
			// a printed subtotal below the items sum can be a legitimate
			// discount, within tolerance and only if the total still closes
			discountOK := diff.Sign() > 0 &&
				diff.LessThanOrEqual(itemsSum.Mul(v.discountTolerance)) &&
				(r.Total == nil || v.totalCloses(r, *r.Subtotal))
			if !discountOK {
				return false, fmt.Sprintf("items sum %s does not match subtotal %s",
					money.Format(itemsSum), money.Format(*r.Subtotal)), itemsSum
			}
			v.logger.Debug("normalizer.validate.discount_accepted",
				"items_sum", money.Format(itemsSum),
				"subtotal", money.Format(*r.Subtotal),
				"discount", money.Format(diff),
			)
		}
	}

	if r.Total != nil {
		base := itemsSum
		if r.Subtotal != nil {
			base = *r.Subtotal
		}
		if !v.totalCloses(r, base) {
			return false, fmt.Sprintf("total %s does not match %s plus tax and tip",
				money.Format(*r.Total), money.Format(base)), itemsSum
		}
	}

	return true, "", itemsSum
}

// totalCloses checks round(base + tax + tip) against the printed total
// within the cents tolerance.
func (v *Validator) totalCloses(r *Receipt, base decimal.Decimal) bool {
	sum := base
	if r.Tax != nil {
		sum = money.Round2(sum.Add(*r.Tax))
	}
	if r.Tip != nil {
		sum = money.Round2(sum.Add(*r.Tip))
	}
	return sum.Sub(*r.Total).Abs().LessThanOrEqual(centsTolerance)
}
