package ai

import "strings"

// DefaultModel is the fallback used when a chosen model rejects image input
const DefaultModel = "amazon/nova-2-lite-v1:free"

// Prompts holds the immutable instructions sent with every extraction call
type Prompts struct {
	System      string
	OCR         string // must contain {OCR_TEXT}
	Image       string
	Rules       string
	LineItems   string // must contain {OCR_TEXT}
	DebugSystem string
	DebugImage  string
}

// DefaultPrompts returns the built-in prompt set
func DefaultPrompts() Prompts {
	return Prompts{
		System:      systemPrompt,
		OCR:         ocrUserPrompt,
		Image:       imageUserPrompt,
		Rules:       rulesAndFormat,
		LineItems:   LineItemRescuePrompt,
		DebugSystem: debugSystemPrompt,
		DebugImage:  debugImagePrompt,
	}
}

// TextPrompt renders the user message for OCR text mode
func (p Prompts) TextPrompt(ocrText string) string {
	return strings.Replace(p.OCR, "{OCR_TEXT}", ocrText, 1) + "\n" + p.Rules
}

// ImagePrompt renders the user message for image mode
func (p Prompts) ImagePrompt() string {
	return p.Image + "\n" + p.Rules
}

// LineItemPrompt renders the narrower line-item request
func (p Prompts) LineItemPrompt(ocrText string) string {
	return strings.Replace(p.LineItems, "{OCR_TEXT}", ocrText, 1)
}

const systemPrompt = `You are an expert invoice data extraction engine working for accountants.

Rules:
1. Read the whole document, header to footer.
2. Extract every visible field: vendor, buyer, dates, amounts, line items, bank details.
3. Return ONLY valid JSON. No markdown, no explanations, no expressions.
4. When a field is not present use null (not "", not 0, not "N/A").
5. Numbers carry no currency symbols and no thousands separators: "₹32,250.4" becomes 32250.4.
6. Dates use YYYY-MM-DD: "12-May-2021" becomes "2021-05-12".
7. GST numbers are 15 character alphanumeric identifiers.
8. Extract every line item with HSN, quantity, rate, discount, tax and amount.
9. When an amount must be calculated (price * rate / 100), calculate it and return the number.
10. Every number in the JSON is a literal value, never a formula.`

const ocrUserPrompt = `TASK: Extract the complete invoice from this OCR text.

==== RAW OCR TEXT ====
{OCR_TEXT}
==== END OCR TEXT ====

Count the rows of the line item table and return every one of them.

Look for:
- Vendor: company name, GSTIN, address, phone, email, website
- Invoice: number (INV-XXXX, Bill No), date, due date, PO number, e-way bill number, vehicle number
- Bill to: name, GSTIN, address
- Ship to: name, address (when different)
- Line items: description, HSN/SAC, quantity and unit, unit price, discount amount and %, tax amount and %, line total
- Totals: subtotal, discount, shipping/freight, IGST/CGST/SGST rate and amount, grand total, amount in words
- Bank: bank name and branch, account number, IFSC, UPI ID
- Terms and notes

Return only JSON.`

const imageUserPrompt = `TASK: Extract the complete invoice from this image.

The invoice may have several line items. Count the rows of the table and return all of them.

Read the whole image: header and logo, every table column, totals, fine print, bank details.

Look for:
1. Vendor: company name, GSTIN, address, phone, website
2. Invoice: number, date (YYYY-MM-DD), PO number, e-way bill, vehicle number
3. Bill to: name, GSTIN, address
4. Ship to (when different)
5. Line items: description, HSN, quantity and unit, rate, discount, tax, line total
6. Totals: subtotal, discount, shipping, IGST or CGST+SGST with rates, grand total
7. Bank: account number, IFSC, bank name and branch, UPI ID
8. Terms and notes

Convert "₹32,250.4" to 32250.4 and "12-May-2021" to "2021-05-12".
Return only JSON.`

const rulesAndFormat = `
OUTPUT RULES:
- Return ONLY valid JSON, no markdown
- Use null for missing fields
- Numbers without currency symbols or commas
- Dates as YYYY-MM-DD

REQUIRED JSON SCHEMA:

{
  "vendor_name": string | null,
  "vendor_gst_number": string | null,
  "vendor_address": string | null,
  "vendor_phone": string | null,
  "vendor_email": string | null,
  "vendor_website": string | null,

  "invoice_number": string | null,
  "invoice_date": string | null,
  "due_date": string | null,
  "po_number": string | null,
  "eway_bill_number": string | null,
  "vehicle_number": string | null,

  "buyer_name": string | null,
  "buyer_gst_number": string | null,
  "buyer_address": string | null,

  "shipping_name": string | null,
  "shipping_address": string | null,

  "currency": string | null,

  "subtotal": number | null,
  "discount": number | null,
  "discount_percentage": number | null,
  "shipping": number | null,
  "tax": number | null,
  "total": number | null,
  "amount_in_words": string | null,

  "igst_rate": number | null,
  "igst_amount": number | null,
  "cgst_rate": number | null,
  "cgst_amount": number | null,
  "sgst_rate": number | null,
  "sgst_amount": number | null,

  "bank_name": string | null,
  "bank_branch": string | null,
  "account_number": string | null,
  "ifsc_code": string | null,
  "upi_id": string | null,

  "line_items": [
    {
      "description": string | null,
      "hsn_code": string | null,
      "quantity": number | null,
      "unit": string | null,
      "unit_price": number | null,
      "discount": number | null,
      "discount_percentage": number | null,
      "tax": number | null,
      "tax_rate": number | null,
      "line_total": number | null
    }
  ],

  "terms_and_conditions": string | null,
  "notes": string | null
}

JSON RULES:
- Values are literal numbers or strings, never expressions
- WRONG: "tax": 2535.0 * 18.0 / 100
- RIGHT: "tax": 456.3
- Calculate subtotal, discount, tax and line_total before answering

DATE EXAMPLES: "12-May-2021" -> "2021-05-12", "15/03/24" -> "2024-03-15"
NUMBER EXAMPLES: "₹32,250.4" -> 32250.4, "18%" -> 18
`

// LineItemRescuePrompt asks for the line item table only
const LineItemRescuePrompt = `The previous response missed the invoice line items. From the OCR text below, return ONLY a JSON array named "line_items" containing objects with fields: description, hsn_code, quantity, unit, unit_price, discount, discount_percentage, tax, tax_rate, line_total. Use literal numbers, no expressions. OCR:

{OCR_TEXT}`

const debugSystemPrompt = `You are an invoice reader. Return a single JSON object describing the invoice in the image. No markdown.`

const debugImagePrompt = `Read this invoice image and return everything you can see as JSON.`
