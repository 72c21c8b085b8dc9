package ocr

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/snaptosheet/invoice-extract-service/internal/models"
	"github.com/snaptosheet/invoice-extract-service/internal/normalize"
)

// ParseText builds a best-guess partial invoice from raw OCR output using
// line-oriented pattern matching. It makes no remote calls and returns the
// same record for the same input.
func ParseText(text string) *models.InvoiceData {
	inv := models.NewInvoiceData()
	lines := splitLines(text)

	inv.Currency = inferCurrency(text)
	parseGST(lines, inv)
	inv.InvoiceNumber = findInvoiceNumber(lines)
	inv.InvoiceDate = findInvoiceDate(lines)
	inv.VendorName = findVendor(lines)
	parseTotals(lines, inv)
	inv.LineItems = parseLineItems(lines)

	if inv.Total == nil && inv.Subtotal != nil {
		inv.Total = deriveTotal(inv)
	}
	return inv
}

// splitLines returns the non-empty trimmed lines of text
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func inferCurrency(text string) *string {
	upper := strings.ToUpper(text)
	for _, rule := range currencyRules {
		if strings.Contains(upper, rule.literal) {
			return normalize.Ptr(rule.code)
		}
	}
	return nil
}

// parseGST captures rate and amount for each GST component named on a line.
// Later lines override earlier ones.
func parseGST(lines []string, inv *models.InvoiceData) {
	for _, line := range lines {
		for _, c := range gstComponents {
			loc := c.label.FindStringIndex(line)
			if loc == nil {
				continue
			}
			rest := line[loc[1]:]

			rate := firstPercent(rest)
			if rate == nil {
				rate = firstPercent(line)
			}
			amount := firstAmount(rest)

			switch c.name {
			case "igst":
				setIfPresent(&inv.IGSTRate, rate)
				setIfPresent(&inv.IGSTAmount, amount)
			case "cgst":
				setIfPresent(&inv.CGSTRate, rate)
				setIfPresent(&inv.CGSTAmount, amount)
			case "sgst":
				setIfPresent(&inv.SGSTRate, rate)
				setIfPresent(&inv.SGSTAmount, amount)
			}
		}
	}
}

func firstPercent(s string) *float64 {
	m := percentValue.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return normalize.Number(m[1])
}

// firstAmount returns the first number in s that is not a percentage.
func firstAmount(s string) *float64 {
	for _, m := range numberToken.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			continue
		}
		if n := normalize.Number(m[0]); n != nil {
			return n
		}
	}
	return nil
}

func setIfPresent(dst **float64, v *float64) {
	if v != nil {
		*dst = v
	}
}

func findInvoiceNumber(lines []string) *string {
	for _, line := range lines {
		if !matchesAny(invoiceNumberLabels, line) || invoiceNumberExclude.MatchString(line) {
			continue
		}
		parts := separator.Split(line, 3)
		if len(parts) < 2 {
			continue
		}
		value := parts[1]
		if loc := invoiceNumberStop.FindStringIndex(value); loc != nil {
			value = value[:loc[0]]
		}
		value = strings.Trim(value, invoiceNumberTrim)
		if n := utf8.RuneCountInString(value); n >= 1 && n < 50 {
			return &value
		}
	}
	return nil
}

func findInvoiceDate(lines []string) *string {
	for i, line := range lines {
		if !dateLabel.MatchString(line) || dueDateLine.MatchString(line) {
			continue
		}
		loc := dateLabel.FindStringIndex(line)
		if d := normalize.Date(leadingSep.ReplaceAllString(line[loc[1]:], "")); d != nil {
			return d
		}
		parts := separator.Split(line, 3)
		if len(parts) > 1 {
			if d := normalize.Date(parts[1]); d != nil {
				return d
			}
		}
		if i+1 < len(lines) {
			if d := normalize.Date(lines[i+1]); d != nil {
				return d
			}
		}
	}
	return nil
}

func findVendor(lines []string) *string {
	for i, line := range lines {
		if i >= vendorScanLines {
			break
		}
		n := utf8.RuneCountInString(line)
		if n <= vendorMinLen || n >= vendorMaxLen {
			continue
		}
		if vendorExclude.MatchString(line) || startsDigit.MatchString(line) {
			continue
		}
		v := line
		return &v
	}
	return nil
}

func parseTotals(lines []string, inv *models.InvoiceData) {
	found := map[string]*float64{}
	for _, line := range lines {
		for _, rule := range totalRules {
			if !rule.match.MatchString(line) {
				continue
			}
			if rule.exclude != nil && rule.exclude.MatchString(line) {
				continue
			}
			if rule.firstWins && found[rule.field] != nil {
				continue
			}
			n := lastAmountToken(line)
			if n == nil || (rule.positive && *n <= 0) {
				continue
			}
			found[rule.field] = n
		}
	}
	inv.Subtotal = found["subtotal"]
	inv.Discount = found["discount"]
	inv.Shipping = found["shipping"]
	inv.Tax = found["tax"]
	inv.Total = found["total"]
}

// lastAmountToken returns the last colon/space separated token on the line
// that reads as a number and is not a percentage.
func lastAmountToken(line string) *float64 {
	tokens := tokenSplit.Split(line, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if tok == "" || strings.Contains(tok, "%") || !hasDigit.MatchString(tok) {
			continue
		}
		if n := normalize.Number(tok); n != nil {
			return n
		}
	}
	return nil
}

var serialNumber = regexp.MustCompile(`^\d+[.)]?$`)

func parseLineItems(lines []string) []models.InvoiceLineItem {
	items := []models.InvoiceLineItem{}
	for _, line := range lines {
		if lineItemHeader.MatchString(line) {
			continue
		}
		numbers := numericRun.FindAllString(line, -1)
		if len(numbers) < 2 {
			continue
		}

		desc := description(line)
		if desc == "" || utf8.RuneCountInString(desc) >= maxDescriptionLen {
			continue
		}

		count := len(numbers)
		last := normalize.Number(numbers[count-1])
		if last == nil || *last <= 0 {
			continue
		}
		item := models.InvoiceLineItem{
			Description: normalize.Ptr(desc),
			LineTotal:   last,
		}
		if second := normalize.Number(numbers[count-2]); second != nil && *second > 0 && *second != *last {
			item.UnitPrice = second
		}
		if count >= 3 {
			if third := normalize.Number(numbers[count-3]); third != nil && *third != 0 && *third < maxQuantity {
				item.Quantity = third
			}
		}
		items = append(items, item)
	}
	return items
}

// description drops the trailing run of digit-bearing tokens and a leading
// serial number, and joins what is left.
func description(line string) string {
	fields := strings.Fields(line)
	end := len(fields)
	for end > 0 && hasDigit.MatchString(fields[end-1]) {
		end--
	}
	fields = fields[:end]
	if len(fields) > 0 && serialNumber.MatchString(fields[0]) {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// deriveTotal computes subtotal - discount + shipping + tax with nil as zero.
func deriveTotal(inv *models.InvoiceData) *float64 {
	total := decimalOf(inv.Subtotal).
		Sub(decimalOf(inv.Discount)).
		Add(decimalOf(inv.Shipping)).
		Add(decimalOf(inv.Tax))
	f, _ := total.Float64()
	return normalize.Float(f)
}

func decimalOf(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
