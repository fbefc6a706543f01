// Package normalizer consumes the external text-normalization service:
// the client contract, payload schema, and internal-consistency validation
// of the structured receipt it returns.
package normalizer

import (
	"context"

	"github.com/shopspring/decimal"
)

// SchemaVersion is the payload version tag this worker understands.
const SchemaVersion = "receipt/v1"

// Item is one normalized receipt line.
type Item struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Notes       string          `json:"notes,omitempty"`
}

// Receipt is the external normalizer's structured output. The core only
// reads it, except that callers may append to Issues for traceability.
type Receipt struct {
	Version    string           `json:"version"`
	Currency   string           `json:"currency"`
	Items      []Item           `json:"items"`
	Subtotal   *decimal.Decimal `json:"subtotal,omitempty"`
	Tax        *decimal.Decimal `json:"tax,omitempty"`
	Tip        *decimal.Decimal `json:"tip,omitempty"`
	Total      *decimal.Decimal `json:"total,omitempty"`
	Confidence float32          `json:"confidence,omitempty"`
	Issues     []string         `json:"issues,omitempty"`
}

// Hints carries the heuristic extraction's values along with the raw text so
// the normalizer can anchor on them.
type Hints struct {
	Subtotal  string `json:"subtotal,omitempty"`
	Tax       string `json:"tax,omitempty"`
	Tip       string `json:"tip,omitempty"`
	Total     string `json:"total,omitempty"`
	ItemCount int    `json:"item_count,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// Normalizer is the interface the orchestrator depends on. Implementations
// return the raw JSON document; decoding and validation happen here.
type Normalizer interface {
	Normalize(ctx context.Context, rawText string, hints Hints) ([]byte, error)
}
