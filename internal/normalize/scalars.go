// Package normalize coerces untrusted values into the typed fields of an
// InvoiceData. Every function here is total: bad input yields nil, never a
// panic or an error.
package normalize

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonNumericChars = regexp.MustCompile(`[^0-9,.\-]`)
	leadingFloat    = regexp.MustCompile(`^-?(?:\d+(?:\.\d*)?|\.\d+)`)
	isoDate         = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	ordinalSuffix   = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
	alpha3          = regexp.MustCompile(`^[A-Z]{3}$`)
	multiSpace      = regexp.MustCompile(`\s+`)
)

// dateLayouts are tried in order. Day-first numeric forms come before
// month-first ones, so 03/04/2024 reads as 3 April.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"1/2/2006",
	"1-2-2006",
	"2/1/06",
	"2-1-06",
	"1/2/06",
	"2-Jan-2006",
	"2-Jan-06",
	"2 Jan 2006",
	"2 Jan 06",
	"2 January 2006",
	"2-January-2006",
	"2 Jan, 2006",
	"2 January, 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan-2-2006",
	"2006-Jan-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006",
	"Mon Jan 2 2006",
}

// String returns the trimmed string, or nil for non-strings and blanks.
func String(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Number coerces numbers and numeric strings such as "₹32,250.4".
func Number(v any) *float64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case json.Number:
		return parseCleaned(string(val))
	case string:
		return parseCleaned(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return finite(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return finite(float64(rv.Uint()))
	}
	return nil
}

// Percent is Number tolerant of a trailing percent sign: "18%" becomes 18.
func Percent(v any) *float64 {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		return parseCleaned(s)
	}
	return Number(v)
}

// Date returns the value as YYYY-MM-DD, or nil when it cannot be parsed.
func Date(v any) *string {
	s := String(v)
	if s == nil {
		return nil
	}
	if isoDate.MatchString(*s) {
		return s
	}

	candidate := ordinalSuffix.ReplaceAllString(*s, "$1")
	candidate = multiSpace.ReplaceAllString(candidate, " ")
	candidate = strings.TrimSuffix(candidate, ".")
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, candidate, time.UTC)
		if err != nil {
			continue
		}
		out := t.UTC().Format("2006-01-02")
		return &out
	}
	return nil
}

// Currency maps symbols and codes to an uppercase ISO 4217 code.
func Currency(v any) *string {
	s := String(v)
	if s == nil {
		return nil
	}
	upper := strings.ToUpper(*s)

	var code string
	switch {
	case strings.Contains(upper, "INR") || strings.Contains(upper, "₹"):
		code = "INR"
	case strings.Contains(upper, "USD") || strings.Contains(upper, "$"):
		code = "USD"
	case strings.Contains(upper, "EUR") || strings.Contains(upper, "€"):
		code = "EUR"
	case alpha3.MatchString(upper):
		code = upper
	default:
		return nil
	}
	return &code
}

// Float returns a pointer to f, or nil when f is NaN or infinite.
func Float(f float64) *float64 {
	return finite(f)
}

// Ptr returns a pointer to s.
func Ptr(s string) *string {
	return &s
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseCleaned strips everything but digits, commas, minus and dot, drops the
// commas and reads the longest leading float.
func parseCleaned(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	cleaned := strings.ReplaceAll(nonNumericChars.ReplaceAllString(s, ""), ",", "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return nil
	}
	m := leadingFloat.FindString(cleaned)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}
