// Package recordapi is the client for the receipt-record HTTP API the worker
// writes its results to.
package recordapi

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mpalumbo7/receipt-parser/constants"
)

// Item is one receipt line as the record API accepts it.
type Item struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Totals carries the chosen receipt totals. Absent optionals are omitted
// from the patch body.
type Totals struct {
	Subtotal *decimal.Decimal `json:"subtotal,omitempty"`
	Tax      *decimal.Decimal `json:"tax,omitempty"`
	Tip      *decimal.Decimal `json:"tip,omitempty"`
	Total    *decimal.Decimal `json:"total,omitempty"`
}

// ParseMeta is the persisted parse decision.
type ParseMeta struct {
	Engine            constants.ParseEngine `json:"engine"`
	ExternalAttempted bool                  `json:"externalAttempted"`
	ExternalAccepted  *bool                 `json:"externalAccepted,omitempty"`
	RejectReason      string                `json:"rejectReason,omitempty"`
}

// API is the record surface the orchestrator depends on.
type API interface {
	PatchRawText(ctx context.Context, receiptID, text string) error
	PatchTotals(ctx context.Context, receiptID string, totals Totals) error
	PatchStatus(ctx context.Context, receiptID string, status constants.ReceiptStatus) error
	PatchParseMeta(ctx context.Context, receiptID string, meta ParseMeta) error
	// PostItem creates one line item. The operation is NOT idempotent;
	// callers must never retry it.
	PostItem(ctx context.Context, receiptID string, item Item) error
	// ReplaceItems swaps the full item set in one call. Idempotent, safe to
	// retry. Only available when SupportsReplaceItems reports true.
	ReplaceItems(ctx context.Context, receiptID string, items []Item) error
	SupportsReplaceItems() bool
	PostParseError(ctx context.Context, receiptID, note string) error
}
