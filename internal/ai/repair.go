package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/snaptosheet/invoice-extract-service/internal/normalize"
)

var (
	leadingJSONFence = regexp.MustCompile("(?i)^```\\s*json\\s*")
	leadingFence     = regexp.MustCompile("^```\\s*")
	trailingFence    = regexp.MustCompile("```\\s*$")

	// ": a * b / c" and ": a * b" followed by , newline or }
	ratioExpr   = regexp.MustCompile(`:\s*([0-9.]+)\s*\*\s*([0-9.]+)\s*/\s*([0-9.]+)\s*([,\n}])`)
	productExpr = regexp.MustCompile(`:\s*([0-9.]+)\s*\*\s*([0-9.]+)\s*([,\n}])`)
)

var (
	errNoObject = errors.New("no JSON object found in model output")
	errNoArray  = errors.New("no JSON array found in model output")
)

// ParseContent turns a model reply into an untyped JSON value. Structured
// replies are returned as is; text is repaired and parsed.
func ParseContent(content any) (any, error) {
	switch c := content.(type) {
	case map[string]any, []any:
		return c, nil
	case string:
		return RepairJSON(c)
	case []byte:
		return RepairJSON(string(c))
	case nil:
		return nil, ErrEmptyResponse
	default:
		return c, nil
	}
}

// RepairJSON strips fences, evaluates inline arithmetic and parses the first
// balanced JSON object in raw.
func RepairJSON(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}
	text := rewriteExpressions(StripFences(raw))

	span, err := extractObject(text)
	if err != nil {
		return nil, &RepairError{Excerpt: Truncate(raw, MaxDiagnosticLength), Err: err}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil, &RepairError{Excerpt: Truncate(raw, MaxDiagnosticLength), Err: err}
	}
	return obj, nil
}

// StripFences removes leading and trailing markdown code fences
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = leadingJSONFence.ReplaceAllString(s, "")
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// rewriteExpressions replaces numeric expressions in value position with
// their value at two decimals. A division by zero becomes null.
func rewriteExpressions(s string) string {
	s = ratioExpr.ReplaceAllStringFunc(s, func(m string) string {
		g := ratioExpr.FindStringSubmatch(m)
		a, b, c := operand(g[1]), operand(g[2]), operand(g[3])
		if c.IsZero() {
			return ": null" + g[4]
		}
		return ": " + a.Mul(b).Div(c).StringFixed(2) + g[4]
	})
	s = productExpr.ReplaceAllStringFunc(s, func(m string) string {
		g := productExpr.FindStringSubmatch(m)
		return ": " + operand(g[1]).Mul(operand(g[2])).StringFixed(2) + g[3]
	})
	return s
}

func operand(s string) decimal.Decimal {
	f := normalize.Number(s)
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

// extractObject returns the span from the first '{' to its matching '}',
// ignoring braces inside string literals. When the scan never closes it falls
// back to the last '}' in the text.
func extractObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errNoObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	end := strings.LastIndexByte(s, '}')
	if end <= start {
		return "", errNoObject
	}
	return s[start : end+1], nil
}

// extractArray returns the span from the first '[' to the last ']'
func extractArray(s string) (string, error) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return "", errNoArray
	}
	return s[start : end+1], nil
}

// ParseLineItemArray reads the JSON array out of a line-item rescue reply
func ParseLineItemArray(raw string) ([]any, error) {
	span, err := extractArray(rewriteExpressions(StripFences(raw)))
	if err != nil {
		return nil, err
	}
	var arr []any
	if err := json.Unmarshal([]byte(span), &arr); err != nil {
		return nil, err
	}
	return arr, nil
}
