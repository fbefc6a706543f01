package normalizer

import (
	"testing"
)

const goodDoc = `{
	"version": "receipt/v1",
	"currency": "USD",
	"items": [
		{"description": "Coffee", "quantity": "1", "unit_price": "3.50", "line_total": "3.50"},
		{"description": "Cookie", "quantity": "2", "unit_price": "2.00", "line_total": "4.00"}
	],
	"subtotal": "7.50",
	"total": "7.50",
	"confidence": 0.92
}`

func TestDecode(t *testing.T) {
	r, err := Decode([]byte(goodDoc), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Version != SchemaVersion || r.Currency != "USD" {
		t.Errorf("header = %q/%q", r.Version, r.Currency)
	}
	if len(r.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(r.Items))
	}
	if r.Items[1].LineTotal.StringFixed(2) != "4.00" {
		t.Errorf("line total = %s", r.Items[1].LineTotal.StringFixed(2))
	}
	if r.Subtotal == nil || r.Subtotal.StringFixed(2) != "7.50" {
		t.Error("subtotal not decoded")
	}
}

func TestDecodeLenientSanitize(t *testing.T) {
	// numeric money fields and a null tip: salvageable after sanitize
	doc := `{
		"version": "receipt/v1",
		"currency": "usd",
		"items": [
			{"description": "Coffee", "quantity": 1, "unit_price": 3.5, "line_total": 3.5}
		],
		"subtotal": 3.5,
		"tip": null,
		"total": "3.50"
	}`
	r, err := Decode([]byte(doc), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Currency != "USD" {
		t.Errorf("currency = %q, want USD", r.Currency)
	}
	if r.Tip != nil {
		t.Error("null tip should have been dropped")
	}
	if r.Items[0].UnitPrice.StringFixed(2) != "3.50" {
		t.Errorf("unit price = %s", r.Items[0].UnitPrice.StringFixed(2))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	docs := []string{
		`{"version": "receipt/v1"}`,                     // missing currency and items
		`{"version": "receipt/v1", "currency": "USD", "items": [{"description": "x"}]}`, // incomplete item
		`not json at all`,
	}
	for _, doc := range docs {
		if _, err := Decode([]byte(doc), nil); err == nil {
			t.Errorf("Decode(%q) expected error", doc)
		}
	}
}
