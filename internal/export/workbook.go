// Package export renders an extracted invoice as an accountant-facing XLSX
// workbook.
package export

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/snaptosheet/invoice-extract-service/internal/metrics"
	"github.com/snaptosheet/invoice-extract-service/internal/models"
	"github.com/snaptosheet/invoice-extract-service/internal/services"
)

// Sheet names, in workbook order
const (
	SheetSummary    = "Invoice Summary"
	SheetLineItems  = "Line Items"
	SheetAudit      = "Audit Trail"
	SheetAccounting = "Accounting Entries"
	SheetRaw        = "Raw Data"
)

// ContentType is the MIME type of the generated file
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	moneyFormat     = "#,##0.00"
	vendorNameLimit = 20
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// formula marks a cell whose value is an Excel formula
type formula string

// Exporter builds invoice workbooks
type Exporter struct {
	now       func() time.Time
	validator *services.Validator
	logger    *zap.Logger
}

// NewExporter creates a new workbook exporter
func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		now:       time.Now,
		validator: services.NewValidator(),
		logger:    logger,
	}
}

// WithClock replaces the time source used for audit timestamps and filenames
func (x *Exporter) WithClock(now func() time.Time) *Exporter {
	x.now = now
	return x
}

// Filename returns Invoice_<number>_<vendor>_<date>.xlsx. The date is the
// invoice date when known, otherwise today.
func (x *Exporter) Filename(inv *models.InvoiceData) string {
	number := "Unknown"
	if inv.InvoiceNumber != nil && *inv.InvoiceNumber != "" {
		number = unsafeFilenameChars.ReplaceAllString(*inv.InvoiceNumber, "_")
	}
	vendor := "Vendor"
	if inv.VendorName != nil && *inv.VendorName != "" {
		vendor = unsafeFilenameChars.ReplaceAllString(*inv.VendorName, "_")
		if len(vendor) > vendorNameLimit {
			vendor = vendor[:vendorNameLimit]
		}
	}
	date := x.now().UTC().Format("2006-01-02")
	if inv.InvoiceDate != nil && *inv.InvoiceDate != "" {
		date = *inv.InvoiceDate
	}
	return fmt.Sprintf("Invoice_%s_%s_%s.xlsx", number, vendor, date)
}

// Write renders the workbook for inv into w
func (x *Exporter) Write(w io.Writer, inv *models.InvoiceData) error {
	f, err := x.Workbook(inv)
	if err != nil {
		metrics.ObserveExport("error")
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		metrics.ObserveExport("error")
		return fmt.Errorf("xlsx write: %w", err)
	}
	metrics.ObserveExport("ok")
	return nil
}

// Bytes renders the workbook for inv into memory
func (x *Exporter) Bytes(inv *models.InvoiceData) ([]byte, error) {
	var buf bytes.Buffer
	if err := x.Write(&buf, inv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Workbook builds the five-sheet workbook. The caller must Close it.
func (x *Exporter) Workbook(inv *models.InvoiceData) (*excelize.File, error) {
	if inv == nil {
		inv = models.NewInvoiceData()
	}
	start := x.now()

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetLineItems, SheetAudit, SheetAccounting, SheetRaw} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	builders := []func(*excelize.File, *styleSet, *models.InvoiceData) error{
		x.summarySheet,
		x.lineItemsSheet,
		x.auditSheet,
		x.accountingSheet,
		x.rawSheet,
	}
	for _, build := range builders {
		if err := build(f, styles, inv); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	x.logger.Info("export.workbook",
		zap.Stringp("invoice_number", inv.InvoiceNumber),
		zap.Int("line_items", len(inv.LineItems)),
		zap.Duration("elapsed", x.now().Sub(start)),
	)
	return f, nil
}

type styleSet struct {
	money   int
	integer int
	bold    int
}

func newStyles(f *excelize.File) (*styleSet, error) {
	money := moneyFormat
	moneyID, err := f.NewStyle(&excelize.Style{CustomNumFmt: &money})
	if err != nil {
		return nil, fmt.Errorf("money style: %w", err)
	}
	intID, err := f.NewStyle(&excelize.Style{NumFmt: 1})
	if err != nil {
		return nil, fmt.Errorf("integer style: %w", err)
	}
	boldID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("bold style: %w", err)
	}
	return &styleSet{money: moneyID, integer: intID, bold: boldID}, nil
}

// sheetWriter appends rows to one sheet. Numeric and formula cells in the
// formatted columns get a number style.
type sheetWriter struct {
	f       *excelize.File
	name    string
	row     int
	formats map[int]int // 1-based column -> style id
	err     error
}

func newSheetWriter(f *excelize.File, name string, formats map[int]int) *sheetWriter {
	return &sheetWriter{f: f, name: name, formats: formats}
}

// add writes cells to the next row and returns its 1-based index
func (w *sheetWriter) add(cells ...any) int {
	w.row++
	if w.err != nil {
		return w.row
	}
	for i, v := range cells {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			w.err = err
			return w.row
		}
		numeric := false
		switch val := v.(type) {
		case formula:
			w.err = w.f.SetCellFormula(w.name, cell, string(val))
			numeric = true
		case float64, int:
			w.err = w.f.SetCellValue(w.name, cell, val)
			numeric = true
		default:
			w.err = w.f.SetCellValue(w.name, cell, val)
		}
		if w.err != nil {
			return w.row
		}
		if style, ok := w.formats[i+1]; ok && numeric {
			w.err = w.f.SetCellStyle(w.name, cell, cell, style)
		}
	}
	return w.row
}

// heading writes a single bold cell
func (w *sheetWriter) heading(text string, styles *styleSet) int {
	row := w.add(text)
	if w.err == nil {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		w.err = w.f.SetCellStyle(w.name, cell, cell, styles.bold)
	}
	return row
}

func (w *sheetWriter) blank() {
	w.row++
}

func (w *sheetWriter) widths(widths ...float64) error {
	if w.err != nil {
		return w.err
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.f.SetColWidth(w.name, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func (x *Exporter) summarySheet(f *excelize.File, styles *styleSet, inv *models.InvoiceData) error {
	w := newSheetWriter(f, SheetSummary, map[int]int{2: styles.money, 3: styles.money})

	w.heading("INVOICE DETAILS", styles)
	w.blank()

	w.add("VENDOR INFORMATION", "", "INVOICE INFORMATION")
	w.add("Vendor Name:", text(inv.VendorName, "N/A"), "Invoice Number:", text(inv.InvoiceNumber, "N/A"))
	w.add("GST Number:", text(inv.VendorGSTNumber, "N/A"), "Invoice Date:", text(inv.InvoiceDate, "N/A"))
	w.add("Address:", text(inv.VendorAddress, "N/A"), "Due Date:", text(inv.DueDate, "N/A"))
	w.add("Phone:", text(inv.VendorPhone, "N/A"), "Currency:", text(inv.Currency, "INR"))
	w.add("Email:", text(inv.VendorEmail, "N/A"), "PO Number:", text(inv.PONumber, "N/A"))
	w.add("Website:", text(inv.VendorWebsite, "N/A"), "E-way Bill:", text(inv.EwayBillNumber, "N/A"))
	w.add("", "", "Vehicle No:", text(inv.VehicleNumber, "N/A"))
	w.blank()

	w.add("BUYER INFORMATION (BILL TO)", "", "SHIPPING INFORMATION (SHIP TO)")
	shippingName := text(inv.ShippingName, text(inv.BuyerName, "N/A"))
	shippingAddress := text(inv.ShippingAddress, text(inv.BuyerAddress, "N/A"))
	w.add("Buyer Name:", text(inv.BuyerName, "N/A"), "Shipping Name:", shippingName)
	w.add("GST Number:", text(inv.BuyerGSTNumber, "N/A"), "Shipping Address:", shippingAddress)
	w.add("Address:", text(inv.BuyerAddress, "N/A"))
	w.blank()

	w.heading("FINANCIAL SUMMARY", styles)
	w.add("Item", "Amount")
	w.add("Subtotal", amount(inv.Subtotal))
	if inv.DiscountPercentage != nil && *inv.DiscountPercentage != 0 {
		w.add("Less: Discount", amount(inv.Discount), fmt.Sprintf("(%v%%)", *inv.DiscountPercentage))
	} else {
		w.add("Less: Discount", amount(inv.Discount))
	}
	w.add("Add: Shipping/Freight", amount(inv.Shipping))

	if hasGST(inv) {
		w.blank()
		w.heading("GST BREAKDOWN", styles)
		w.add("Tax Type", "Rate (%)", "Amount")
		for _, g := range gstLines(inv) {
			if g.rate != nil {
				w.add(g.name, *g.rate, amount(g.amount))
			}
		}
		w.blank()
	} else {
		w.add("Add: Tax/GST", amount(inv.Tax))
		w.blank()
	}

	w.add("TOTAL AMOUNT", amount(inv.Total))

	check := x.validator.Validate(inv)
	status := "⚠ REVIEW REQUIRED"
	if check.Verified() {
		status = "✓ VERIFIED"
	}
	w.blank()
	w.heading("VERIFICATION", styles)
	w.add("Extracted Total:", amount(inv.Total))
	w.add("Computed Total:", check.Computed.ExpectedTotal)
	w.add("Difference:", check.Computed.Difference)
	w.add("Status:", status)

	if w.err != nil {
		return fmt.Errorf("%s: %w", SheetSummary, w.err)
	}
	return w.widths(25, 15, 25, 15)
}

var lineItemHeaders = []any{"#", "Description", "HSN/SAC Code", "Qty", "Unit", "Unit Price", "Discount", "Disc %", "Tax", "Tax %", "Line Total"}

func (x *Exporter) lineItemsSheet(f *excelize.File, styles *styleSet, inv *models.InvoiceData) error {
	formats := map[int]int{4: styles.integer}
	for col := 6; col <= 11; col++ {
		formats[col] = styles.money
	}
	w := newSheetWriter(f, SheetLineItems, formats)

	w.heading("LINE ITEMS BREAKDOWN", styles)
	w.blank()
	w.add(lineItemHeaders...)

	for i, item := range inv.LineItems {
		w.add(lineItemRow(i, item, "pcs")...)
	}

	if len(inv.LineItems) > 0 {
		w.blank()
		last := w.row
		w.add("", "SUBTOTAL", "", "", "", "", "", "", "", "", formula(fmt.Sprintf("SUM(K4:K%d)", last)))
	}

	if w.err != nil {
		return fmt.Errorf("%s: %w", SheetLineItems, w.err)
	}
	return w.widths(5, 35, 12, 8, 8, 12, 10, 8, 10, 8, 15)
}

func lineItemRow(i int, item models.InvoiceLineItem, defaultUnit string) []any {
	return []any{
		i + 1,
		text(item.Description, ""),
		text(item.HSNCode, ""),
		amount(item.Quantity),
		text(item.Unit, defaultUnit),
		amount(item.UnitPrice),
		amount(item.Discount),
		optional(item.DiscountPercentage),
		amount(item.Tax),
		optional(item.TaxRate),
		amount(item.LineTotal),
	}
}

func (x *Exporter) auditSheet(f *excelize.File, styles *styleSet, inv *models.InvoiceData) error {
	w := newSheetWriter(f, SheetAudit, nil)
	now := x.now()

	w.heading("AUDIT TRAIL & VERIFICATION", styles)
	w.blank()
	w.add("Extraction Details")
	w.add("Extraction Date:", now.Format("2006-01-02"))
	w.add("Extraction Time:", now.Format("15:04:05"))
	w.add("Method:", "OCR + AI LLM")
	w.blank()

	w.heading("Data Quality Check", styles)
	w.add("Field", "Status", "Value")
	for _, fv := range fieldValues(inv) {
		status := "⚠ Missing"
		var value any = "N/A"
		if fv.value != nil {
			status = "✓ Present"
			value = fv.value
		}
		w.add(fv.label, status, value)
	}

	w.blank()
	w.add("Line Items", fmt.Sprintf("%d items extracted", len(inv.LineItems)))
	if len(inv.LineItems) > 0 {
		w.blank()
		w.add("Line Item HSN Codes:")
		for i, item := range inv.LineItems {
			w.add(fmt.Sprintf("Item %d", i+1), text(item.HSNCode, "N/A"), text(item.Description, ""))
		}
	}

	w.blank()
	w.heading("NOTES FOR ACCOUNTANT", styles)
	w.add("• Review all amounts for accuracy")
	w.add("• Verify vendor details with purchase order")
	w.add("• Check GST/tax calculations")
	w.add("• Confirm line items match PO")
	w.add("• Validate totals before posting to ledger")

	if w.err != nil {
		return fmt.Errorf("%s: %w", SheetAudit, w.err)
	}
	return w.widths(25, 20, 25)
}

func (x *Exporter) accountingSheet(f *excelize.File, styles *styleSet, inv *models.InvoiceData) error {
	w := newSheetWriter(f, SheetAccounting, map[int]int{2: styles.money, 3: styles.money, 4: styles.money})

	w.heading("SUGGESTED ACCOUNTING ENTRIES", styles)
	w.blank()
	w.add("Account", "Description", "Debit", "Credit")

	w.add("Purchases A/c",
		fmt.Sprintf("Invoice #%s - %s", text(inv.InvoiceNumber, "N/A"), text(inv.VendorName, "N/A")),
		amount(inv.Subtotal), "")

	if positive(inv.Discount) {
		w.add("Discount Received A/c", "Discount on purchase", "", *inv.Discount)
	}
	if positive(inv.Shipping) {
		w.add("Freight Inward A/c", "Shipping charges", *inv.Shipping, "")
	}
	for _, g := range gstLines(inv) {
		if positive(g.amount) {
			w.add(g.name+" Input A/c", fmt.Sprintf("%s @ %v%%", g.name, optional(g.rate)), *g.amount, "")
		}
	}
	if positive(inv.Tax) && !hasGST(inv) {
		w.add("Tax Input A/c", "Input tax", *inv.Tax, "")
	}

	w.add(text(inv.VendorName, "Vendor")+" A/c", "Accounts Payable", "", amount(inv.Total))

	w.blank()
	last := w.row
	totals := w.add("", "TOTAL", formula(fmt.Sprintf("SUM(C4:C%d)", last)), formula(fmt.Sprintf("SUM(D4:D%d)", last)))
	w.blank()
	w.add("Verification:", formula(fmt.Sprintf("C%d-D%d", totals, totals)))
	w.add("Note: Debit and Credit totals must be equal")

	if w.err != nil {
		return fmt.Errorf("%s: %w", SheetAccounting, w.err)
	}
	return w.widths(25, 45, 15, 15)
}

func (x *Exporter) rawSheet(f *excelize.File, styles *styleSet, inv *models.InvoiceData) error {
	formats := map[int]int{}
	for col := 2; col <= 11; col++ {
		formats[col] = styles.money
	}
	w := newSheetWriter(f, SheetRaw, formats)

	w.heading("RAW DATA EXPORT (CSV-Compatible Format)", styles)
	w.blank()

	section := ""
	for _, fv := range fieldValues(inv) {
		if fv.section != section {
			if section != "" {
				w.blank()
			}
			section = fv.section
			w.heading(section, styles)
		}
		switch v := fv.value.(type) {
		case nil:
			if fv.numeric {
				w.add(fv.label, 0.0)
			} else {
				w.add(fv.label, "")
			}
		default:
			w.add(fv.label, v)
		}
	}
	w.blank()

	w.heading("LINE ITEMS", styles)
	w.add("Item#", "Description", "HSN Code", "Quantity", "Unit", "Unit Price", "Discount", "Disc %", "Tax", "Tax %", "Line Total")
	for i, item := range inv.LineItems {
		w.add(lineItemRow(i, item, "")...)
	}

	if w.err != nil {
		return fmt.Errorf("%s: %w", SheetRaw, w.err)
	}
	return w.widths(25, 50, 12, 10, 8, 12, 10, 8, 10, 8, 15)
}

type fieldValue struct {
	section string
	label   string
	value   any // string, float64 or nil
	numeric bool
}

// fieldValues lists every top-level field in display order
func fieldValues(inv *models.InvoiceData) []fieldValue {
	s := func(section, label string, p *string) fieldValue {
		fv := fieldValue{section: section, label: label}
		if p != nil {
			fv.value = *p
		}
		return fv
	}
	n := func(section, label string, p *float64) fieldValue {
		fv := fieldValue{section: section, label: label, numeric: true}
		if p != nil {
			fv.value = *p
		}
		return fv
	}
	const (
		vendor    = "VENDOR DETAILS"
		invoice   = "INVOICE DETAILS"
		buyer     = "BUYER DETAILS"
		shipping  = "SHIPPING DETAILS"
		financial = "FINANCIAL SUMMARY"
		bank      = "BANK DETAILS"
		extra     = "ADDITIONAL INFORMATION"
	)
	return []fieldValue{
		s(vendor, "Vendor Name", inv.VendorName),
		s(vendor, "Vendor GST Number", inv.VendorGSTNumber),
		s(vendor, "Vendor Address", inv.VendorAddress),
		s(vendor, "Vendor Phone", inv.VendorPhone),
		s(vendor, "Vendor Email", inv.VendorEmail),
		s(vendor, "Vendor Website", inv.VendorWebsite),
		s(invoice, "Invoice Number", inv.InvoiceNumber),
		s(invoice, "Invoice Date", inv.InvoiceDate),
		s(invoice, "Due Date", inv.DueDate),
		s(invoice, "PO Number", inv.PONumber),
		s(invoice, "E-way Bill Number", inv.EwayBillNumber),
		s(invoice, "Vehicle Number", inv.VehicleNumber),
		s(invoice, "Currency", inv.Currency),
		s(buyer, "Buyer Name", inv.BuyerName),
		s(buyer, "Buyer GST Number", inv.BuyerGSTNumber),
		s(buyer, "Buyer Address", inv.BuyerAddress),
		s(shipping, "Shipping Name", inv.ShippingName),
		s(shipping, "Shipping Address", inv.ShippingAddress),
		n(financial, "Subtotal", inv.Subtotal),
		n(financial, "Discount", inv.Discount),
		n(financial, "Discount %", inv.DiscountPercentage),
		n(financial, "Shipping", inv.Shipping),
		n(financial, "Tax", inv.Tax),
		n(financial, "IGST Rate", inv.IGSTRate),
		n(financial, "IGST Amount", inv.IGSTAmount),
		n(financial, "CGST Rate", inv.CGSTRate),
		n(financial, "CGST Amount", inv.CGSTAmount),
		n(financial, "SGST Rate", inv.SGSTRate),
		n(financial, "SGST Amount", inv.SGSTAmount),
		n(financial, "Total", inv.Total),
		s(financial, "Amount in Words", inv.AmountInWords),
		s(bank, "Bank Name", inv.BankName),
		s(bank, "Bank Branch", inv.BankBranch),
		s(bank, "Account Number", inv.AccountNumber),
		s(bank, "IFSC Code", inv.IFSCCode),
		s(bank, "UPI ID", inv.UPIID),
		s(extra, "Terms & Conditions", inv.TermsAndConditions),
		s(extra, "Notes", inv.Notes),
	}
}

type gstLine struct {
	name   string
	rate   *float64
	amount *float64
}

func gstLines(inv *models.InvoiceData) []gstLine {
	return []gstLine{
		{"IGST", inv.IGSTRate, inv.IGSTAmount},
		{"CGST", inv.CGSTRate, inv.CGSTAmount},
		{"SGST", inv.SGSTRate, inv.SGSTAmount},
	}
}

func hasGST(inv *models.InvoiceData) bool {
	return positive(inv.IGSTRate) || positive(inv.CGSTRate) || positive(inv.SGSTRate)
}

func text(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func amount(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func optional(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func positive(p *float64) bool {
	return p != nil && *p > 0
}
