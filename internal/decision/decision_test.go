package decision

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mpalumbo7/receipt-parser/internal/heuristics"
)

func dptr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func item(desc, qty, unit, total string) heuristics.ItemCandidate {
	return heuristics.ItemCandidate{
		Description: desc,
		Quantity:    decimal.RequireFromString(qty),
		UnitPrice:   decimal.RequireFromString(unit),
		LineTotal:   decimal.RequireFromString(total),
	}
}

func strongReceipt() *heuristics.Receipt {
	return &heuristics.Receipt{
		Items: []heuristics.ItemCandidate{
			item("Coffee", "1", "3.50", "3.50"),
			item("Cookie", "2", "2.00", "4.00"),
		},
		Subtotal: dptr("7.50"),
		Tax:      dptr("0.60"),
		Total:    dptr("8.10"),
		IsSane:   true,
	}
}

func TestIsHeuristicsStrong(t *testing.T) {
	if ok, reason := IsHeuristicsStrong(strongReceipt()); !ok {
		t.Fatalf("strong receipt judged weak: %s", reason)
	}
}

func TestIsHeuristicsStrongNoTotalButPositiveSum(t *testing.T) {
	r := strongReceipt()
	r.Total = nil
	if ok, reason := IsHeuristicsStrong(r); !ok {
		t.Fatalf("positive subtotal+tax should be strong: %s", reason)
	}
}

func TestIsHeuristicsWeak(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*heuristics.Receipt)
		want   string
	}{
		{
			"no items",
			func(r *heuristics.Receipt) { r.Items = nil },
			"no items",
		},
		{
			"zero quantity",
			func(r *heuristics.Receipt) { r.Items[0].Quantity = decimal.Zero },
			"non-positive quantity",
		},
		{
			"unit price over cap",
			func(r *heuristics.Receipt) { r.Items[0].UnitPrice = decimal.RequireFromString("10000.01") },
			"out of range",
		},
		{
			"negative unit price",
			func(r *heuristics.Receipt) { r.Items[0].UnitPrice = decimal.RequireFromString("-1.00") },
			"out of range",
		},
		{
			"printed subtotal disagrees",
			func(r *heuristics.Receipt) { r.Subtotal = dptr("20.25") },
			"disagrees",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strongReceipt()
			tt.mutate(r)
			ok, reason := IsHeuristicsStrong(r)
			if ok {
				t.Fatal("expected weak")
			}
			if !strings.Contains(reason, tt.want) {
				t.Errorf("reason %q does not contain %q", reason, tt.want)
			}
		})
	}
}

func TestDecisionConstructors(t *testing.T) {
	h := Heuristic()
	if h.ExternalAttempted || h.ExternalAccepted != nil {
		t.Errorf("Heuristic() = %+v", h)
	}

	a := ExternalAccepted()
	if !a.ExternalAttempted || a.ExternalAccepted == nil || !*a.ExternalAccepted || a.RejectReason != "" {
		t.Errorf("ExternalAccepted() = %+v", a)
	}

	rej := ExternalRejected("items do not sum")
	if rej.Engine != "Heuristics" || rej.ExternalAccepted == nil || *rej.ExternalAccepted {
		t.Errorf("ExternalRejected() = %+v", rej)
	}
	if rej.RejectReason != "items do not sum" {
		t.Errorf("reject reason = %q", rej.RejectReason)
	}
}
