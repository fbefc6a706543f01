package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpalumbo7/receipt-parser/internal/normalizer"
)

// Normalize implements normalizer.Normalizer using text-only chat/completions.
// It returns the model's raw JSON document; schema validation and decoding
// stay with the caller.
func (c *Client) Normalize(ctx context.Context, rawText string, hints normalizer.Hints) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("normalizer.request.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(rawText),
		"hint_items", hints.ItemCount,
	)

	schema := normalizer.BuildReceiptSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt()},
			{"role": "user", "content": buildUserPrompt(rawText, hints) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, err := normalizer.SendJSON(ctx, c.http, endpoint, body,
		map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}, c.logger)
	if err != nil {
		c.logger.Error("normalizer.request.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("normalizer.request.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("normalizer.request.ok",
		"req_id", rid,
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(content), nil
}

func buildSystemPrompt() string {
	parts := []string{
		"You are a receipt normalizer. Return ONLY JSON that matches the provided JSON Schema.",
		"Set 'version' to '" + normalizer.SchemaVersion + "'.",
		"Currency must be a 3-letter ISO 4217 code; default to USD if uncertain.",
		"Every purchasable line becomes one item with description, quantity, unit_price and line_total.",
		"Discounts and adjustments are never items; fold them into the subtotal.",
		"All money values are strings with two decimal places.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(rawText string, hints normalizer.Hints) string {
	var b strings.Builder
	b.WriteString("A heuristic pass over this receipt produced these values; use them as hints, not ground truth:\n")
	if hints.Subtotal != "" {
		b.WriteString("Subtotal: " + hints.Subtotal + "\n")
	}
	if hints.Tax != "" {
		b.WriteString("Tax: " + hints.Tax + "\n")
	}
	if hints.Tip != "" {
		b.WriteString("Tip: " + hints.Tip + "\n")
	}
	if hints.Total != "" {
		b.WriteString("Total: " + hints.Total + "\n")
	}
	if hints.ItemCount > 0 {
		fmt.Fprintf(&b, "Item count: %d\n", hints.ItemCount)
	}
	b.WriteString("\nOCR text (first ~3k chars):\n")
	if len(rawText) > 3000 {
		b.WriteString(rawText[:3000])
	} else {
		b.WriteString(rawText)
	}
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
