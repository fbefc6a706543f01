package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	moneyPattern = `^-?\d+(\.\d{1,2})?$`
	qtyPattern   = `^\d+(\.\d+)?$`
)

// BuildReceiptSchema returns the JSON Schema the normalizer's output must
// satisfy before we trust it enough to decode.
func BuildReceiptSchema() map[string]any {
	moneyField := map[string]any{"type": "string", "pattern": moneyPattern}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"version", "currency", "items"},
		"properties": map[string]any{
			"version":  map[string]any{"type": "string"},
			"currency": map[string]any{"type": "string", "minLength": 1},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"description", "quantity", "unit_price", "line_total"},
					"properties": map[string]any{
						"description": map[string]any{"type": "string"},
						"quantity":    map[string]any{"type": "string", "pattern": qtyPattern},
						"unit_price":  moneyField,
						"line_total":  moneyField,
						"notes":       map[string]any{"type": "string"},
					},
				},
			},
			"subtotal":   moneyField,
			"tax":        moneyField,
			"tip":        moneyField,
			"total":      moneyField,
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"issues":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
}

// ValidateAgainstSchema validates "data" against "schemaMap".
func ValidateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Decode validates the raw normalizer document and unmarshals it. Validation
// runs strict first; on failure a lenient sanitize of the optional money
// fields gets one more chance before giving up.
func Decode(raw []byte, logger *slog.Logger) (*Receipt, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema := BuildReceiptSchema()

	doc := raw
	if err := ValidateAgainstSchema(schema, doc); err != nil {
		cleaned, dropped, sErr := SanitizeOptionalFields(raw)
		if sErr != nil {
			return nil, fmt.Errorf("sanitize: %w", sErr)
		}
		if vErr := ValidateAgainstSchema(schema, cleaned); vErr != nil {
			return nil, fmt.Errorf("schema validation failed: %w", vErr)
		}
		logger.Warn("normalizer.decode.lenient_sanitize_applied", "dropped", dropped)
		doc = cleaned
	}

	var r Receipt
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("decode normalized receipt: %w", err)
	}
	return &r, nil
}
