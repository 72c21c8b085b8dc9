package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	nullableString = map[string]any{"type": []any{"string", "null"}}
	nullableNumber = map[string]any{"type": []any{"number", "null"}}
	nullableDate   = map[string]any{"type": []any{"string", "null"}, "pattern": `^\d{4}-\d{2}-\d{2}$`}
)

// InvoiceSchema is the JSON schema the extraction prompt asks the model to
// answer in
func InvoiceSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description":         nullableString,
			"hsn_code":            nullableString,
			"quantity":            nullableNumber,
			"unit":                nullableString,
			"unit_price":          nullableNumber,
			"discount":            nullableNumber,
			"discount_percentage": nullableNumber,
			"tax":                 nullableNumber,
			"tax_rate":            nullableNumber,
			"line_total":          nullableNumber,
		},
	}

	props := map[string]any{
		"invoice_date": nullableDate,
		"due_date":     nullableDate,
		"currency":     map[string]any{"type": []any{"string", "null"}, "pattern": `^[A-Z]{3}$`},
		"line_items":   map[string]any{"type": "array", "items": item},
	}
	for _, k := range []string{
		"vendor_name", "vendor_gst_number", "vendor_address", "vendor_phone", "vendor_email", "vendor_website",
		"invoice_number", "po_number", "eway_bill_number", "vehicle_number",
		"buyer_name", "buyer_gst_number", "buyer_address", "shipping_name", "shipping_address",
		"amount_in_words", "bank_name", "bank_branch", "account_number", "ifsc_code", "upi_id",
		"terms_and_conditions", "notes",
	} {
		props[k] = nullableString
	}
	for _, k := range []string{
		"subtotal", "discount", "discount_percentage", "shipping", "tax", "total",
		"igst_rate", "igst_amount", "cgst_rate", "cgst_amount", "sgst_rate", "sgst_amount",
	} {
		props[k] = nullableNumber
	}

	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
		"required":   []any{"line_items"},
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func invoiceSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(InvoiceSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("invoice.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("invoice.json")
	})
	return compiledSchema, schemaErr
}

// ValidateModelOutput checks a repaired model answer, before normalization,
// against InvoiceSchema. A mismatch is drift in the model's output format;
// normalization still coerces it, so callers treat the error as a warning.
func ValidateModelOutput(v any) error {
	schema, err := invoiceSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal model output: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("model output does not match schema: %w", err)
	}
	return nil
}
