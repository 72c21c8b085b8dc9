package services

import (
	"fmt"
	"math"
	"time"

	"github.com/snaptosheet/invoice-extract-service/internal/models"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field    string  `json:"field"`
	Code     string  `json:"code"`
	Expected float64 `json:"expected,omitempty"`
	Actual   float64 `json:"actual,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Field    string  `json:"field"`
	Code     string  `json:"code"`
	Expected float64 `json:"expected,omitempty"`
	Actual   float64 `json:"actual,omitempty"`
	Message  string  `json:"message"`
}

// ComputedValues holds calculated/expected values
type ComputedValues struct {
	TaxableBase   float64 `json:"taxable_base"`
	GSTTotal      float64 `json:"gst_total"`
	ExpectedTotal float64 `json:"expected_total"`
	Difference    float64 `json:"difference"`
}

// ValidationResult is the response from validation
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needs_review"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
	Computed    ComputedValues      `json:"computed"`
}

// Verified reports whether the stated total matches its components
func (r *ValidationResult) Verified() bool {
	return r.Computed.Difference <= TotalTolerance
}

// TotalTolerance is the absolute slack allowed between total and its components
const TotalTolerance = 0.01

// Validator cross-checks the arithmetic of an extracted invoice. It never
// modifies the record.
type Validator struct {
	tolerance float64 // percentage tolerance for rate checks (0.05 = 5%)
}

// NewValidator creates a new validator with default 5% tolerance
func NewValidator() *Validator {
	return &Validator{tolerance: 0.05}
}

// Validate performs all cross-validations on invoice data
func (v *Validator) Validate(inv *models.InvoiceData) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}
	if inv == nil {
		return result
	}

	subtotal := value(inv.Subtotal)
	discount := value(inv.Discount)
	shipping := value(inv.Shipping)
	tax := value(inv.Tax)
	total := value(inv.Total)

	taxableBase := math.Max(subtotal-discount, 0)
	gstTotal := value(inv.IGSTAmount) + value(inv.CGSTAmount) + value(inv.SGSTAmount)
	expectedTotal := subtotal - discount + shipping + tax

	result.Computed = ComputedValues{
		TaxableBase:   round(taxableBase),
		GSTTotal:      round(gstTotal),
		ExpectedTotal: round(expectedTotal),
		Difference:    round(math.Abs(total - expectedTotal)),
	}

	// 1. Amounts must not be negative
	v.validateSigns(inv, result)

	// 2. Total vs components
	v.validateTotal(inv, result, expectedTotal)

	// 3. Discount bounded by subtotal
	v.validateDiscount(inv, result)

	// 4. GST components vs rates and vs tax
	v.validateGST(inv, result, taxableBase, gstTotal)

	// 5. Per line arithmetic
	v.validateLineItems(inv, result)

	// 6. Date coherence
	v.validateDates(inv, result)

	// Set final status
	result.Valid = len(result.Errors) == 0
	result.NeedsReview = len(result.Warnings) > 0

	return result
}

// validateSigns rejects negative monetary amounts
func (v *Validator) validateSigns(inv *models.InvoiceData, result *ValidationResult) {
	fields := []struct {
		name string
		val  *float64
	}{
		{"subtotal", inv.Subtotal},
		{"discount", inv.Discount},
		{"shipping", inv.Shipping},
		{"tax", inv.Tax},
		{"total", inv.Total},
	}
	for _, f := range fields {
		if f.val != nil && *f.val < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   f.name,
				Code:    "negative_amount",
				Actual:  *f.val,
				Message: "amount must not be negative",
			})
		}
	}
}

// validateTotal checks total matches subtotal - discount + shipping + tax
func (v *Validator) validateTotal(inv *models.InvoiceData, result *ValidationResult, expectedTotal float64) {
	if inv.Total == nil {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "total",
			Code:    "total_missing",
			Message: "total was not found on the invoice",
		})
		return
	}
	if inv.Subtotal == nil {
		return
	}

	if math.Abs(*inv.Total-expectedTotal) > TotalTolerance {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:    "total",
			Code:     "total_mismatch",
			Expected: round(expectedTotal),
			Actual:   round(*inv.Total),
			Message:  "total does not equal subtotal - discount + shipping + tax",
		})
	}
}

// validateDiscount checks the discount does not exceed the subtotal
func (v *Validator) validateDiscount(inv *models.InvoiceData, result *ValidationResult) {
	if inv.Discount == nil || inv.Subtotal == nil {
		return
	}
	if *inv.Discount > *inv.Subtotal {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:    "discount",
			Code:     "discount_exceeds_subtotal",
			Expected: round(*inv.Subtotal),
			Actual:   round(*inv.Discount),
			Message:  "discount is larger than the subtotal",
		})
	}
}

// validateGST checks each component amount against its rate and the sum
// against the reported tax
func (v *Validator) validateGST(inv *models.InvoiceData, result *ValidationResult, taxableBase, gstTotal float64) {
	components := []struct {
		field  string
		rate   *float64
		amount *float64
	}{
		{"igst_amount", inv.IGSTRate, inv.IGSTAmount},
		{"cgst_amount", inv.CGSTRate, inv.CGSTAmount},
		{"sgst_amount", inv.SGSTRate, inv.SGSTAmount},
	}

	if taxableBase > 0 {
		for _, c := range components {
			if c.rate == nil || c.amount == nil {
				continue
			}
			expected := taxableBase * *c.rate / 100
			if math.Abs(*c.amount-expected) > expected*v.tolerance+TotalTolerance {
				result.Warnings = append(result.Warnings, ValidationWarning{
					Field:    c.field,
					Code:     "gst_rate_mismatch",
					Expected: round(expected),
					Actual:   round(*c.amount),
					Message:  "GST amount does not match its rate on the taxable base",
				})
			}
		}
	}

	if inv.Tax != nil && gstTotal > 0 && math.Abs(*inv.Tax-gstTotal) > TotalTolerance {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:    "tax",
			Code:     "gst_sum_mismatch",
			Expected: round(gstTotal),
			Actual:   round(*inv.Tax),
			Message:  "IGST + CGST + SGST does not equal tax",
		})
	}
}

// validateLineItems checks quantity x unit price against the line total,
// with or without the line's discount and tax
func (v *Validator) validateLineItems(inv *models.InvoiceData, result *ValidationResult) {
	for i, item := range inv.LineItems {
		if item.Quantity == nil || item.UnitPrice == nil || item.LineTotal == nil {
			continue
		}
		gross := *item.Quantity * *item.UnitPrice
		net := gross - value(item.Discount)
		candidates := []float64{gross, net, net + value(item.Tax)}

		slack := math.Max(*item.LineTotal*v.tolerance/5, TotalTolerance)
		ok := false
		for _, c := range candidates {
			if math.Abs(c-*item.LineTotal) <= slack {
				ok = true
				break
			}
		}
		if !ok {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:    lineField(i),
				Code:     "line_total_mismatch",
				Expected: round(gross),
				Actual:   round(*item.LineTotal),
				Message:  "quantity x unit price does not match the line total",
			})
		}
	}
}

// validateDates checks the due date does not precede the invoice date
func (v *Validator) validateDates(inv *models.InvoiceData, result *ValidationResult) {
	if inv.InvoiceDate == nil || inv.DueDate == nil {
		return
	}
	issued, err1 := time.Parse("2006-01-02", *inv.InvoiceDate)
	due, err2 := time.Parse("2006-01-02", *inv.DueDate)
	if err1 != nil || err2 != nil {
		return
	}
	if due.Before(issued) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "due_date",
			Code:    "due_before_invoice",
			Message: "due date is before the invoice date",
		})
	}
}

func lineField(i int) string {
	return fmt.Sprintf("line_items[%d].line_total", i)
}

func value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}
