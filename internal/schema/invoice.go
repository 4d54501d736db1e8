// Package schema validates raw invoice documents before parsing.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) for raw
// invoice documents as a generic map. Money-ish and quantity fields accept
// string or number because OCR extraction emits both.
func BuildInvoiceJSONSchema() map[string]any {
	stringOrNumber := map[string]any{
		"type": []string{"string", "number"},
	}
	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"product_code": map[string]any{"type": "string"},
			"description":  map[string]any{"type": "string"},
			"quantity":     stringOrNumber,
			"unit":         map[string]any{"type": "string"},
			"pack_size":    map[string]any{"type": "string"},
			"unit_price":   stringOrNumber,
			"line_total":   stringOrNumber,
			"raw_text":     map[string]any{"type": "string"},
			"category":     map[string]any{"type": "string"},
			"brand":        map[string]any{"type": "string"},
			"barcode":      map[string]any{"type": "string"},
		},
		"required": []string{"product_code"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"invoice_number":  map[string]any{"type": "string", "minLength": 1},
			"invoice_date":    map[string]any{"type": "string"},
			"due_date":        map[string]any{"type": "string"},
			"vendor":          map[string]any{"type": "string", "minLength": 1},
			"customer_number": map[string]any{"type": "string"},
			"purchase_order":  map[string]any{"type": "string"},
			"extracted_text":  map[string]any{"type": "string"},
			"line_items": map[string]any{
				"type":  "array",
				"items": lineItem,
			},
		},
		"required": []string{"invoice_number", "vendor", "line_items"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateRawInvoice validates one raw invoice document.
func ValidateRawInvoice(data []byte) error {
	return ValidateJSONAgainstSchema(BuildInvoiceJSONSchema(), data)
}
