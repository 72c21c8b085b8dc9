package ocr

import "regexp"

// currencyRule maps a literal found anywhere in the text to a currency code.
type currencyRule struct {
	literal string
	code    string
}

// Symbols win over three-letter codes.
var currencyRules = []currencyRule{
	{"₹", "INR"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"INR", "INR"},
	{"USD", "USD"},
	{"EUR", "EUR"},
	{"GBP", "GBP"},
}

// gstComponent describes one GST component captured from a labelled line.
type gstComponent struct {
	name  string // lowercase label searched for
	label *regexp.Regexp
}

var gstComponents = []gstComponent{
	{"igst", regexp.MustCompile(`(?i)igst`)},
	{"cgst", regexp.MustCompile(`(?i)cgst`)},
	{"sgst", regexp.MustCompile(`(?i)sgst`)},
}

var (
	percentValue = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	numberToken  = regexp.MustCompile(`\d+[\d.,]*(\s*%)?`)
	numericRun   = regexp.MustCompile(`\d+[\d.,]*`)
	separator    = regexp.MustCompile(`[:=]`)
	tokenSplit   = regexp.MustCompile(`[:\s]+`)
	startsDigit  = regexp.MustCompile(`^\d`)
	hasDigit     = regexp.MustCompile(`\d`)
)

// Invoice number labels. A line matching any of these is a candidate.
var invoiceNumberLabels = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^invoice\s*(?:no\b\.?|number|num\b|#)`),
	regexp.MustCompile(`(?i)^inv\b-?`),
	regexp.MustCompile(`(?i)^bill\s*(?:no\b\.?|number|#)`),
	regexp.MustCompile(`(?i)^invoice\b`),
}

// A line whose own label is a date label is never an invoice number.
var invoiceNumberExclude = regexp.MustCompile(`(?i)^(invoice|bill)\s*date`)

// invoiceNumberStop cuts a value where a following label on the same line
// begins, as in "Invoice No: INV-77 Date: 12/03/2024".
var invoiceNumberStop = regexp.MustCompile(`(?i)\b(date|dated)\b`)

// Longer alternatives come first so "Dated:" is not read as "Date" + "d:".
var (
	dateLabel   = regexp.MustCompile(`(?i)(invoice\s*date|dated|date)`)
	dueDateLine = regexp.MustCompile(`(?i)\bdue\b`)
	leadingSep  = regexp.MustCompile(`^[\s:=.\-]*`)
)

// invoiceNumberTrim is stripped from both ends of a captured number.
const invoiceNumberTrim = " \t|,;"

// vendorExclude rejects address, contact and label lines near the top of a
// document.
var vendorExclude = regexp.MustCompile(`(?i)\b(invoice|date|address|email|e-mail|phone|tel|mobile|fax|plot|road|suite|st\.?|street|city|gstin|gst|cgst|sgst|igst|pan|total|subtotal|amount|tax|bill|bill\s+to|ship\s+to)\b`)

const (
	vendorScanLines = 5
	vendorMinLen    = 3
	vendorMaxLen    = 80
)

// totalRule extracts one financial summary field from a labelled line.
type totalRule struct {
	field     string
	match     *regexp.Regexp
	exclude   *regexp.Regexp // optional
	positive  bool           // value must be > 0
	firstWins bool           // keep the first accepted value instead of the last
}

var totalRules = []totalRule{
	{
		field: "subtotal",
		match: regexp.MustCompile(`(?i)^sub\s*-?\s*total\s*[:\s]`),
	},
	{
		field:    "discount",
		match:    regexp.MustCompile(`(?i)(discount|less)\s*[:\s]`),
		exclude:  regexp.MustCompile(`(?i)discount\s*%`),
		positive: true,
	},
	{
		field:    "shipping",
		match:    regexp.MustCompile(`(?i)(shipping|delivery|handling|freight)\s*[:\s]`),
		positive: true,
	},
	{
		field:     "tax",
		match:     regexp.MustCompile(`(?i)(tax|igst|gst|vat)\s*[:\s]`),
		exclude:   regexp.MustCompile(`(?i)(tax%|igst\s*%|gst\s*%)`),
		positive:  true,
		firstWins: true,
	},
	{
		field:     "total",
		match:     regexp.MustCompile(`(?i)^(total|grand\s*total|amount\s*(due|payable))\s*[:\s]?`),
		positive:  true,
		firstWins: true,
	},
}

// lineItemHeader marks table headers and summary rows that are not items.
var lineItemHeader = regexp.MustCompile(`(?i)(description|qty|quantity|price|rate|total|hsn|sac|gst|tax|invoice|date|address)`)

const (
	maxDescriptionLen = 100
	maxQuantity       = 1000
)
