package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snaptosheet/invoice-extract-service/internal/models"
)

func fp(v float64) *float64 { return &v }
func sp(s string) *string   { return &s }

func codes(r *ValidationResult) []string {
	var out []string
	for _, e := range r.Errors {
		out = append(out, e.Code)
	}
	for _, w := range r.Warnings {
		out = append(out, w.Code)
	}
	return out
}

func consistentInvoice() *models.InvoiceData {
	inv := models.NewInvoiceData()
	inv.Subtotal = fp(1000)
	inv.Discount = fp(100)
	inv.Tax = fp(162)
	inv.Total = fp(1062)
	inv.CGSTRate = fp(9)
	inv.CGSTAmount = fp(81)
	inv.SGSTRate = fp(9)
	inv.SGSTAmount = fp(81)
	inv.InvoiceDate = sp("2024-03-01")
	inv.DueDate = sp("2024-03-31")
	inv.LineItems = []models.InvoiceLineItem{
		{Quantity: fp(2), UnitPrice: fp(500), LineTotal: fp(1000)},
	}
	return inv
}

func TestValidator_ConsistentInvoice(t *testing.T) {
	r := NewValidator().Validate(consistentInvoice())

	assert.True(t, r.Valid)
	assert.False(t, r.NeedsReview)
	assert.Empty(t, codes(r))
	assert.True(t, r.Verified())
	assert.Equal(t, ComputedValues{TaxableBase: 900, GSTTotal: 162, ExpectedTotal: 1062, Difference: 0}, r.Computed)
}

func TestValidator_Findings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(inv *models.InvoiceData)
		want   string
	}{
		{"negative amount", func(inv *models.InvoiceData) { inv.Shipping = fp(-5) }, "negative_amount"},
		{"total missing", func(inv *models.InvoiceData) { inv.Total = nil }, "total_missing"},
		{"total mismatch", func(inv *models.InvoiceData) { inv.Total = fp(1100) }, "total_mismatch"},
		{"discount over subtotal", func(inv *models.InvoiceData) { inv.Discount = fp(1200) }, "discount_exceeds_subtotal"},
		{"gst rate", func(inv *models.InvoiceData) { inv.CGSTAmount = fp(120) }, "gst_rate_mismatch"},
		{"gst sum", func(inv *models.InvoiceData) { inv.Tax = fp(170); inv.Total = fp(1070) }, "gst_sum_mismatch"},
		{"line arithmetic", func(inv *models.InvoiceData) { inv.LineItems[0].LineTotal = fp(700) }, "line_total_mismatch"},
		{"due before invoice", func(inv *models.InvoiceData) { inv.DueDate = sp("2024-02-01") }, "due_before_invoice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := consistentInvoice()
			tt.mutate(inv)
			assert.Contains(t, codes(NewValidator().Validate(inv)), tt.want)
		})
	}
}

func TestValidator_NegativeIsError(t *testing.T) {
	inv := consistentInvoice()
	inv.Tax = fp(-1)

	r := NewValidator().Validate(inv)
	assert.False(t, r.Valid)
	assert.Equal(t, "tax", r.Errors[0].Field)
}

func TestValidator_LineTotalIncludingTax(t *testing.T) {
	inv := models.NewInvoiceData()
	inv.Total = fp(118)
	inv.LineItems = []models.InvoiceLineItem{
		{Quantity: fp(1), UnitPrice: fp(100), Tax: fp(18), LineTotal: fp(118)},
	}
	assert.NotContains(t, codes(NewValidator().Validate(inv)), "line_total_mismatch")
}

func TestValidator_DoesNotModify(t *testing.T) {
	inv := consistentInvoice()
	inv.Total = fp(5)
	NewValidator().Validate(inv)
	assert.Equal(t, 5.0, *inv.Total)
}

func TestValidator_Nil(t *testing.T) {
	r := NewValidator().Validate(nil)
	assert.True(t, r.Valid)
	assert.NotNil(t, r.Errors)
	assert.NotNil(t, r.Warnings)
}
