// Package literal parses plot-option override values from report
// configuration into typed cty values.
//
// The grammar is deliberately restricted: numbers, booleans, quoted strings,
// and comma-separated lists of those (optionally bracketed). Override values
// come from configuration files of uncertain provenance, so nothing here ever
// evaluates an expression.
package literal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Parse parses a single override value. Bare words that are not numbers or
// booleans are returned as strings.
func Parse(raw string) (cty.Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return cty.StringVal(""), nil
	}
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return cty.NilVal, fmt.Errorf("unterminated list literal %q", raw)
		}
		return parseList(s[1 : len(s)-1])
	}
	if items := splitTop(s); len(items) > 1 {
		return parseItems(items)
	}
	return parseScalar(s)
}

func parseList(body string) (cty.Value, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return cty.EmptyTupleVal, nil
	}
	return parseItems(splitTop(body))
}

func parseItems(items []string) (cty.Value, error) {
	vals := make([]cty.Value, 0, len(items))
	for _, item := range items {
		v, err := parseScalar(strings.TrimSpace(item))
		if err != nil {
			return cty.NilVal, err
		}
		vals = append(vals, v)
	}
	return cty.TupleVal(vals), nil
}

func parseScalar(s string) (cty.Value, error) {
	if s == "" {
		return cty.StringVal(""), nil
	}
	switch strings.ToLower(s) {
	case "true":
		return cty.True, nil
	case "false":
		return cty.False, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return cty.NumberIntVal(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return cty.NumberFloatVal(f), nil
	}
	if q := s[0]; q == '\'' || q == '"' {
		if len(s) < 2 || s[len(s)-1] != q {
			return cty.NilVal, fmt.Errorf("unterminated string literal %s", s)
		}
		inner := s[1 : len(s)-1]
		if strings.ContainsRune(inner, rune(q)) {
			return cty.NilVal, fmt.Errorf("malformed quoted string %s", s)
		}
		return cty.StringVal(inner), nil
	}
	// Bare word. Reject anything that looks like it wants evaluation.
	if strings.ContainsAny(s, "(){}$`") {
		return cty.NilVal, fmt.Errorf("value %q is not a literal", s)
	}
	return cty.StringVal(s), nil
}

// splitTop splits on commas that are not inside quotes.
func splitTop(s string) []string {
	var (
		out   []string
		buf   strings.Builder
		quote rune
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			buf.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			buf.WriteRune(r)
		case r == ',':
			out = append(out, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	out = append(out, buf.String())
	return out
}
