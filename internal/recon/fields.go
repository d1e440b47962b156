// Package recon normalizes raw Knack record payloads into the typed model
// and computes derived progress metrics. Nothing above this package should
// ever see raw CRM field shapes.
package recon

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// RawSuffix is appended to a field key for the structured variant of the
// field carried alongside the rendered display string.
const RawSuffix = "_raw"

var (
	stripPolicy = bluemonday.StrictPolicy()
	spaceRe     = regexp.MustCompile(`\s+`)
)

// ResolveField reads a field from a raw record, preferring the structured
// "_raw" variant when present, then the plain value, and returning def when
// both are absent. It is total: any JSON-shaped input yields a value, never
// a panic.
func ResolveField(record map[string]any, key string, def any) any {
	if record == nil {
		return def
	}

	if raw, ok := record[key+RawSuffix]; ok && raw != nil {
		return raw
	}

	if value, ok := record[key]; ok && value != nil {
		return value
	}

	return def
}

// ResolveString resolves a field to a display string. Object values are
// reduced using, in order, their e-mail, first+last name, or identifier;
// anything else is stringified.
func ResolveString(record map[string]any, key, def string) string {
	value := ResolveField(record, key, nil)
	if value == nil {
		return def
	}

	if s := DisplayString(value); s != "" {
		return s
	}

	return def
}

// DisplayString reduces any JSON value to a display string.
func DisplayString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any:
		if email, ok := v["email"].(string); ok && email != "" {
			return email
		}
		first, _ := v["first"].(string)
		last, _ := v["last"].(string)
		if first != "" || last != "" {
			return strings.TrimSpace(first + " " + last)
		}
		if identifier, ok := v["identifier"].(string); ok && identifier != "" {
			return identifier
		}
		return stringify(v)
	default:
		return stringify(v)
	}
}

func stringify(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}

	return string(encoded)
}

// ResolveFloat resolves a field to a number, defaulting to def when the
// value is absent or not numeric.
func ResolveFloat(record map[string]any, key string, def float64) float64 {
	value := ResolveField(record, key, nil)
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
	}

	return def
}

// StripHTML removes markup and collapses whitespace, leaving clean display
// text. Knack renders connection and rich-text fields as HTML fragments.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}

	cleaned := stripPolicy.Sanitize(s)
	cleaned = html.UnescapeString(cleaned)
	cleaned = strings.ReplaceAll(cleaned, " ", " ")

	return strings.TrimSpace(spaceRe.ReplaceAllString(cleaned, " "))
}

// NormalizeName lowercases, trims and collapses whitespace for name
// comparison.
func NormalizeName(s string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
