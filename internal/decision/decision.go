// Package decision gates whether a heuristic extraction is trustworthy on
// its own or must be cross-checked against the external normalizer.
package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mpalumbo7/receipt-parser/constants"
	"github.com/mpalumbo7/receipt-parser/internal/heuristics"
	"github.com/mpalumbo7/receipt-parser/internal/money"
)

// maxUnitPrice is the sanity ceiling on a single heuristic unit price.
var maxUnitPrice = decimal.NewFromInt(10000)

// centsTolerance mirrors the validator's two-cent arithmetic allowance.
var centsTolerance = decimal.New(2, -2)

// ParseDecision records how one parse job was resolved. Produced once per
// job and persisted as metadata, never mutated afterward.
type ParseDecision struct {
	Engine            constants.ParseEngine
	ExternalAttempted bool
	ExternalAccepted  *bool
	RejectReason      string
}

// IsHeuristicsStrong judges whether the heuristic candidate can be used
// directly. Weak results are not errors; they route through the external
// normalizer instead.
func IsHeuristicsStrong(r *heuristics.Receipt) (bool, string) {
	if len(r.Items) == 0 {
		return false, "no items extracted"
	}

	computed := decimal.Zero
	for _, it := range r.Items {
		if it.Quantity.Sign() <= 0 {
			return false, fmt.Sprintf("item %q has non-positive quantity", it.Description)
		}
		if it.UnitPrice.Sign() < 0 || it.UnitPrice.GreaterThan(maxUnitPrice) {
			return false, fmt.Sprintf("item %q unit price %s out of range", it.Description, money.Format(it.UnitPrice))
		}
		computed = money.Round2(computed.Add(it.UnitPrice.Mul(it.Quantity)))
	}

	if r.Subtotal != nil && r.Subtotal.Sub(computed).Abs().GreaterThan(centsTolerance) {
		return false, fmt.Sprintf("printed subtotal %s disagrees with computed %s",
			money.Format(*r.Subtotal), money.Format(computed))
	}

	if r.Total != nil && r.Total.Sign() >= 0 {
		return true, ""
	}

	sum := computed
	if r.Subtotal != nil {
		sum = *r.Subtotal
	}
	if r.Tax != nil {
		sum = money.Round2(sum.Add(*r.Tax))
	}
	if r.Tip != nil {
		sum = money.Round2(sum.Add(*r.Tip))
	}
	if sum.Sign() > 0 {
		return true, ""
	}
	return false, "no positive total"
}

// Heuristic returns the decision for a strong heuristic result.
func Heuristic() ParseDecision {
	return ParseDecision{
		Engine:            constants.EngineHeuristics,
		ExternalAttempted: false,
	}
}

// ExternalAccepted returns the decision for a validated normalizer result.
func ExternalAccepted() ParseDecision {
	accepted := true
	return ParseDecision{
		Engine:            constants.EngineExternalNormalizer,
		ExternalAttempted: true,
		ExternalAccepted:  &accepted,
	}
}

// ExternalRejected returns the fallback decision when the normalizer failed
// or produced an inconsistent result; the heuristic values are used anyway.
func ExternalRejected(reason string) ParseDecision {
	accepted := false
	return ParseDecision{
		Engine:            constants.EngineHeuristics,
		ExternalAttempted: true,
		ExternalAccepted:  &accepted,
		RejectReason:      reason,
	}
}
