package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoice_MapsEveryKind(t *testing.T) {
	raw := map[string]any{
		"vendor_name":         "  Sharma Electricals ",
		"invoice_number":      "INV-2024-001",
		"invoice_date":        "15/03/2024",
		"due_date":            "garbage",
		"currency":            "₹",
		"subtotal":            "10,000.00",
		"discount":            500,
		"discount_percentage": "5%",
		"tax":                 1710.0,
		"total":               "₹11,210.00",
		"igst_rate":           "18%",
		"cgst_rate":           9,
		"notes":               "",
		"line_items": []any{
			map[string]any{
				"description": "Copper wire",
				"quantity":    "10",
				"unit_price":  1000,
				"tax_rate":    "18%",
				"line_total":  10000,
			},
			"not an object",
		},
	}

	inv := Invoice(raw)

	assert.Equal(t, "Sharma Electricals", *inv.VendorName)
	assert.Equal(t, "INV-2024-001", *inv.InvoiceNumber)
	assert.Equal(t, "2024-03-15", *inv.InvoiceDate)
	assert.Nil(t, inv.DueDate)
	assert.Equal(t, "INR", *inv.Currency)
	assert.Equal(t, 10000.0, *inv.Subtotal)
	assert.Equal(t, 500.0, *inv.Discount)
	assert.Equal(t, 5.0, *inv.DiscountPercentage)
	assert.Equal(t, 11210.0, *inv.Total)
	assert.Equal(t, 18.0, *inv.IGSTRate)
	assert.Equal(t, 9.0, *inv.CGSTRate)
	assert.Nil(t, inv.SGSTRate)
	assert.Nil(t, inv.Notes)

	require.Len(t, inv.LineItems, 2)
	item := inv.LineItems[0]
	assert.Equal(t, "Copper wire", *item.Description)
	assert.Equal(t, 10.0, *item.Quantity)
	assert.Equal(t, 18.0, *item.TaxRate)
	assert.Equal(t, 10000.0, *item.LineTotal)
	assert.Nil(t, inv.LineItems[1].Description)
}

func TestInvoice_NonObjectInput(t *testing.T) {
	for _, in := range []any{nil, "text", 12.0, []any{1, 2}} {
		inv := Invoice(in)
		require.NotNil(t, inv)
		assert.NotNil(t, inv.LineItems)
		assert.Empty(t, inv.LineItems)
		assert.Nil(t, inv.VendorName)
	}
}

func TestInvoice_NonArrayLineItems(t *testing.T) {
	inv := Invoice(map[string]any{"line_items": map[string]any{"description": "x"}})
	assert.NotNil(t, inv.LineItems)
	assert.Empty(t, inv.LineItems)
}

func TestInvoice_MarshalsAbsentFieldsAsNull(t *testing.T) {
	b, err := json.Marshal(Invoice(nil))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	v, ok := out["vendor_name"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, []any{}, out["line_items"])
}
