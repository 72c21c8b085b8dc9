package services

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/snaptosheet/invoice-extract-service/internal/metrics"
	"github.com/snaptosheet/invoice-extract-service/internal/models"
	"github.com/snaptosheet/invoice-extract-service/internal/normalize"
)

// LineItemSource fetches line items for OCR text when the first extraction
// returned none.
type LineItemSource interface {
	LineItems(ctx context.Context, ocrText string) ([]models.InvoiceLineItem, error)
}

// Input is a normalized record plus what the caller originally sent
type Input struct {
	Invoice  *models.InvoiceData
	OCRText  string
	HasImage bool
}

// Reconciliation actions, also used as metric labels
const (
	ActionInvoiceNumber = "invoice_number_fallback"
	ActionInvoiceDate   = "invoice_date_fallback"
	ActionTotals        = "totals_inferred"
	ActionLineItems     = "line_items_rescued"
)

var (
	suspiciousInvoiceNumber = regexp.MustCompile(`^\d{1,6}$`)

	// tried in order, first capture group is the number
	invoiceNumberFallbacks = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(INV[-/]?[A-Z0-9]*\d[A-Z0-9/-]*)`),
		regexp.MustCompile(`(?i)\binvoice\s*(?:no\b\.?|number\b:?|#)\s*[:\-\s]*([A-Za-z0-9][A-Za-z0-9/-]*)`),
		regexp.MustCompile(`(?i)\bbill\s*(?:no\b\.?|#)\s*[:\-\s]*([A-Za-z0-9][A-Za-z0-9/-]*)`),
	}
	validInvoiceNumber = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/-]{0,48}$`)

	dateToken = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2}|\d{1,2}[\s-][A-Za-z]{3,9}[\s,-]+\d{2,4})\b`)

	tableMarkers = regexp.MustCompile(`(?i)(qty|quantity|description|hsn|rate|amount)`)
)

// Reconciler corrects a normalized record against its own line items and the
// raw OCR text.
type Reconciler struct {
	tolerance decimal.Decimal // absolute difference that triggers a totals override
	logger    *zap.Logger
}

// NewReconciler creates a reconciler with a 1.0 totals tolerance
func NewReconciler(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		tolerance: decimal.NewFromInt(1),
		logger:    logger,
	}
}

// Reconcile applies, in order, the invoice number fallback, the invoice date
// fallback, the totals recomputation and the line item rescue. source may be
// nil, in which case no rescue is attempted.
func (r *Reconciler) Reconcile(ctx context.Context, in Input, source LineItemSource) *models.InvoiceData {
	inv := copyInvoice(in.Invoice)

	r.fallbackInvoiceNumber(inv, in.OCRText)
	r.fallbackInvoiceDate(inv, in.OCRText)
	r.recomputeTotals(inv)
	r.rescueLineItems(ctx, inv, in.OCRText, source)

	return inv
}

func copyInvoice(src *models.InvoiceData) *models.InvoiceData {
	if src == nil {
		return models.NewInvoiceData()
	}
	out := *src
	out.LineItems = append([]models.InvoiceLineItem{}, src.LineItems...)
	return &out
}

func (r *Reconciler) fallbackInvoiceNumber(inv *models.InvoiceData, ocrText string) {
	if ocrText == "" {
		return
	}
	if inv.InvoiceNumber != nil && !suspiciousInvoiceNumber.MatchString(*inv.InvoiceNumber) {
		return
	}
	found := InvoiceNumberFromText(ocrText)
	if found == nil {
		return
	}
	r.logger.Info("reconcile.invoice_number_fallback",
		zap.Stringp("previous", inv.InvoiceNumber),
		zap.String("recovered", *found),
	)
	inv.InvoiceNumber = found
	metrics.ObserveReconcile(ActionInvoiceNumber)
}

// InvoiceNumberFromText recovers an invoice number from raw OCR text
func InvoiceNumberFromText(text string) *string {
	for _, re := range invoiceNumberFallbacks {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if validInvoiceNumber.MatchString(m[1]) {
			return normalize.Ptr(m[1])
		}
	}
	return nil
}

func (r *Reconciler) fallbackInvoiceDate(inv *models.InvoiceData, ocrText string) {
	if inv.InvoiceDate != nil || ocrText == "" {
		return
	}
	if d := DateFromText(ocrText); d != nil {
		r.logger.Info("reconcile.invoice_date_fallback", zap.String("recovered", *d))
		inv.InvoiceDate = d
		metrics.ObserveReconcile(ActionInvoiceDate)
	}
}

// DateFromText returns the first date-shaped token in text that parses
func DateFromText(text string) *string {
	for _, tok := range dateToken.FindAllString(text, -1) {
		if d := normalize.Date(tok); d != nil {
			return d
		}
	}
	return nil
}

// recomputeTotals trusts line item arithmetic over a reported total that
// disagrees with it by more than the tolerance.
func (r *Reconciler) recomputeTotals(inv *models.InvoiceData) {
	if len(inv.LineItems) == 0 {
		return
	}

	subtotal, discount, tax := decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range inv.LineItems {
		qty := decimal.NewFromInt(1)
		if item.Quantity != nil {
			qty = decimal.NewFromFloat(*item.Quantity)
		}
		price := decimal.Zero
		switch {
		case item.UnitPrice != nil:
			price = decimal.NewFromFloat(*item.UnitPrice)
		case item.LineTotal != nil:
			price = decimal.NewFromFloat(*item.LineTotal)
		}
		subtotal = subtotal.Add(qty.Mul(price))
		discount = discount.Add(toDecimal(item.Discount))
		tax = tax.Add(toDecimal(item.Tax))
	}
	total := subtotal.Sub(discount).Add(toDecimal(inv.Shipping)).Add(tax)

	if inv.Total != nil && decimal.NewFromFloat(*inv.Total).Sub(total).Abs().LessThanOrEqual(r.tolerance) {
		return
	}

	r.logger.Info("reconcile.totals_inferred",
		zap.Float64p("reported_total", inv.Total),
		zap.String("computed_total", total.StringFixed(2)),
		zap.Int("line_items", len(inv.LineItems)),
	)

	inv.Subtotal = round2(subtotal)
	inv.Discount = round2(discount)
	inv.Tax = round2(tax)
	inv.Total = round2(total)

	note := fmt.Sprintf("Totals inferred from %d line items.", len(inv.LineItems))
	if inv.Notes != nil {
		note = *inv.Notes + "\n" + note
	}
	inv.Notes = &note
	metrics.ObserveReconcile(ActionTotals)
}

func (r *Reconciler) rescueLineItems(ctx context.Context, inv *models.InvoiceData, ocrText string, source LineItemSource) {
	if len(inv.LineItems) > 0 || source == nil || ocrText == "" || !tableMarkers.MatchString(ocrText) {
		return
	}

	items, err := source.LineItems(ctx, ocrText)
	if err != nil {
		r.logger.Warn("reconcile.line_items_rescue_failed", zap.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}
	r.logger.Info("reconcile.line_items_rescued", zap.Int("count", len(items)))
	inv.LineItems = items
	metrics.ObserveReconcile(ActionLineItems)
}

func toDecimal(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

// round2 rounds to two decimals
func round2(d decimal.Decimal) *float64 {
	f, _ := d.Round(2).Float64()
	return &f
}
