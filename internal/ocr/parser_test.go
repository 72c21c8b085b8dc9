package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gstInvoice = `Sharma Electricals
12 MG Road, Pune
GSTIN: 27ABCDE1234F1Z5
Invoice No: INV-2024-001
Invoice Date: 15/03/2024
Description Qty Rate Amount
1 Copper Wire 2 500.00 1000.00
2 Switch Board 5 200.00 1000.00
Sub Total: 2000.00
CGST 9%: 180.00
SGST 9%: 180.00
Total: ₹2,360.00`

func TestParseText_GSTInvoice(t *testing.T) {
	inv := ParseText(gstInvoice)

	require.NotNil(t, inv.VendorName)
	assert.Equal(t, "Sharma Electricals", *inv.VendorName)
	require.NotNil(t, inv.InvoiceNumber)
	assert.Equal(t, "INV-2024-001", *inv.InvoiceNumber)
	require.NotNil(t, inv.InvoiceDate)
	assert.Equal(t, "2024-03-15", *inv.InvoiceDate)
	require.NotNil(t, inv.Currency)
	assert.Equal(t, "INR", *inv.Currency)

	assert.Equal(t, 9.0, *inv.CGSTRate)
	assert.Equal(t, 180.0, *inv.CGSTAmount)
	assert.Equal(t, 9.0, *inv.SGSTRate)
	assert.Equal(t, 180.0, *inv.SGSTAmount)
	assert.Nil(t, inv.IGSTRate)

	assert.Equal(t, 2000.0, *inv.Subtotal)
	assert.Equal(t, 180.0, *inv.Tax, "first tax line wins")
	assert.Equal(t, 2360.0, *inv.Total)
	assert.Nil(t, inv.Discount)
	assert.Nil(t, inv.Shipping)

	require.Len(t, inv.LineItems, 2)
	first := inv.LineItems[0]
	assert.Equal(t, "Copper Wire", *first.Description)
	assert.Equal(t, 2.0, *first.Quantity)
	assert.Equal(t, 500.0, *first.UnitPrice)
	assert.Equal(t, 1000.0, *first.LineTotal)
	assert.Equal(t, "Switch Board", *inv.LineItems[1].Description)
	assert.Equal(t, 5.0, *inv.LineItems[1].Quantity)
}

func TestParseText_SimpleGSTInvoice(t *testing.T) {
	inv := ParseText(`Invoice No: INV-2024-007
Date: 15-Mar-2024
Subtotal: 1000
CGST 9%: 90
SGST 9%: 90
Total: 1180`)

	require.NotNil(t, inv.InvoiceNumber)
	assert.Equal(t, "INV-2024-007", *inv.InvoiceNumber)
	require.NotNil(t, inv.InvoiceDate)
	assert.Equal(t, "2024-03-15", *inv.InvoiceDate)
	require.NotNil(t, inv.Subtotal)
	assert.Equal(t, 1000.0, *inv.Subtotal)
	require.NotNil(t, inv.CGSTRate)
	assert.Equal(t, 9.0, *inv.CGSTRate)
	assert.Equal(t, 90.0, *inv.CGSTAmount)
	require.NotNil(t, inv.SGSTRate)
	assert.Equal(t, 9.0, *inv.SGSTRate)
	assert.Equal(t, 90.0, *inv.SGSTAmount)
	require.NotNil(t, inv.Total)
	assert.Equal(t, 1180.0, *inv.Total)
	assert.NotNil(t, inv.LineItems)
}

func TestParseText_DerivesTotal(t *testing.T) {
	inv := ParseText("Subtotal: 1000\nDiscount: 100\nShipping: 50\nTax: 90")

	assert.Equal(t, 1000.0, *inv.Subtotal)
	assert.Equal(t, 100.0, *inv.Discount)
	assert.Equal(t, 50.0, *inv.Shipping)
	assert.Equal(t, 90.0, *inv.Tax)
	require.NotNil(t, inv.Total)
	assert.Equal(t, 1040.0, *inv.Total)
}

func TestParseText_NoTotalWithoutSubtotal(t *testing.T) {
	inv := ParseText("Tax: 90")
	assert.Nil(t, inv.Total)
}

func TestParseText_InvoiceNumber(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *string
	}{
		{"number label", "Invoice Number: 12345", strPtr("12345")},
		{"hash label", "Invoice #: A/17", strPtr("A/17")},
		{"bill label", "Bill No. = B-99", strPtr("B-99")},
		{"date line skipped", "Invoice Date: 01/02/2024", nil},
		{"date label on the same line", "Invoice No: INV-77 Date: 12/03/2024", strPtr("INV-77")},
		{"dated label on the same line", "Invoice No: 1234    Dated: 12/03/2024", strPtr("1234")},
		{"pipe separated columns", "Bill No: 55 | Date: 01-02-2024", strPtr("55")},
		{"no separator", "Invoice 12345", nil},
		{"absent", "Thank you for your business", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseText(tt.text).InvoiceNumber)
		})
	}
}

func TestParseText_InvoiceDate(t *testing.T) {
	t.Run("due date ignored", func(t *testing.T) {
		inv := ParseText("Due Date: 30/03/2024\nInvoice Date: 01/03/2024")
		require.NotNil(t, inv.InvoiceDate)
		assert.Equal(t, "2024-03-01", *inv.InvoiceDate)
	})

	t.Run("value on next line", func(t *testing.T) {
		inv := ParseText("Dated\n05 Jan 2024")
		require.NotNil(t, inv.InvoiceDate)
		assert.Equal(t, "2024-01-05", *inv.InvoiceDate)
	})

	t.Run("after another label on the same line", func(t *testing.T) {
		tests := map[string]string{
			"Invoice No: INV-77 Date: 12/03/2024":  "2024-03-12",
			"Invoice No: 1234    Dated: 12/03/2024": "2024-03-12",
			"Bill No: 55 | Date: 01-02-2024":        "2024-02-01",
		}
		for text, want := range tests {
			got := ParseText(text).InvoiceDate
			require.NotNil(t, got, text)
			assert.Equal(t, want, *got, text)
		}
	})

	t.Run("unparseable", func(t *testing.T) {
		assert.Nil(t, ParseText("Date: soon").InvoiceDate)
	})
}

func TestParseText_Currency(t *testing.T) {
	assert.Equal(t, "USD", *ParseText("Total: $120.50").Currency)
	assert.Equal(t, "EUR", *ParseText("Amount in eur 50").Currency)
	assert.Nil(t, ParseText("Total: 120.50").Currency)
}

func TestParseText_Vendor(t *testing.T) {
	t.Run("skips labels and short lines", func(t *testing.T) {
		inv := ParseText("TAX INVOICE\nAB\n42 Industrial Estate\nNova Supplies Pvt Ltd\nPhone: 99999")
		require.NotNil(t, inv.VendorName)
		assert.Equal(t, "Nova Supplies Pvt Ltd", *inv.VendorName)
	})

	t.Run("only the first five lines", func(t *testing.T) {
		inv := ParseText("TAX INVOICE\nDate: 01/01/2024\nGSTIN: X\nPhone: 1\nEmail: a@b\nLate Vendor Name")
		assert.Nil(t, inv.VendorName)
	})
}

func TestParseText_LineItemRules(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantItems int
		check     func(t *testing.T, text string)
	}{
		{"zero line total dropped", "Widget 2 0", 0, nil},
		{"one number is not an item", "Widget 20", 0, nil},
		{"header dropped", "Item Description 1 2", 0, nil},
		{
			name:      "equal price and total",
			line:      "Widget 3 3",
			wantItems: 1,
			check: func(t *testing.T, text string) {
				item := ParseText(text).LineItems[0]
				assert.Nil(t, item.UnitPrice)
				assert.Nil(t, item.Quantity)
				assert.Equal(t, 3.0, *item.LineTotal)
			},
		},
		{
			name:      "large quantity ignored",
			line:      "Bolt 1500 2 3000",
			wantItems: 1,
			check: func(t *testing.T, text string) {
				item := ParseText(text).LineItems[0]
				assert.Nil(t, item.Quantity)
				assert.Equal(t, 2.0, *item.UnitPrice)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := ParseText(tt.line)
			assert.Len(t, inv.LineItems, tt.wantItems)
			if tt.check != nil {
				tt.check(t, tt.line)
			}
		})
	}
}

func TestParseText_Empty(t *testing.T) {
	inv := ParseText("")
	assert.NotNil(t, inv.LineItems)
	assert.Empty(t, inv.LineItems)
	assert.Nil(t, inv.VendorName)
	assert.Nil(t, inv.Total)
	assert.Nil(t, inv.Currency)
}

func TestParseText_Deterministic(t *testing.T) {
	assert.Equal(t, ParseText(gstInvoice), ParseText(gstInvoice))
}

func strPtr(s string) *string { return &s }
