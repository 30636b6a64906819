// Package summary extracts the flat key/value object produced by the second
// stage of a correlation chain and renders it as display text.
package summary

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrNoSummary is returned when no known key could be recovered.
var ErrNoSummary = errors.New("no summary fields found")

// Keys is the closed key set, in display order.
var Keys = []string{"impactful", "alignment", "patterns", "synergy", "significance"}

// Summary maps known keys to their string values.
type Summary map[string]string

// pairPattern matches a "key": "value" pair with JSON string escapes.
var pairPattern = regexp.MustCompile(`"([A-Za-z_]+)"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// Parse recovers a Summary from model output. Strict JSON is tried first,
// after locating the object inside fences or surrounding prose; when that
// is not valid JSON a tolerant pair scanner runs over the raw text.
// Non-string values, including nested objects, are ignored.
func Parse(raw string) (Summary, error) {
	s, ok := parseStrict(raw)
	if !ok {
		s = parseLoose(raw)
	}
	if len(s) > 0 {
		return s, nil
	}
	return nil, errors.Wrapf(ErrNoSummary, "in %d bytes of output", len(raw))
}

// parseStrict reports whether raw held a valid JSON object.
func parseStrict(raw string) (Summary, bool) {
	obj := extractObject(raw)
	if obj == "" {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, false
	}
	s := Summary{}
	for _, k := range Keys {
		if v, ok := fields[k].(string); ok {
			s[k] = v
		}
	}
	return s, true
}

// extractObject returns the outermost {...} span of text, or "".
func extractObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func parseLoose(raw string) Summary {
	known := make(map[string]bool, len(Keys))
	for _, k := range Keys {
		known[k] = true
	}
	s := Summary{}
	for _, m := range pairPattern.FindAllStringSubmatch(raw, -1) {
		key := m[1]
		if !known[key] {
			continue
		}
		if _, seen := s[key]; seen {
			continue
		}
		value, err := strconv.Unquote(`"` + m[2] + `"`)
		if err != nil {
			value = m[2]
		}
		s[key] = value
	}
	return s
}

// Flatten joins the non-empty values of Keys, in order, with single spaces.
func (s Summary) Flatten() string {
	parts := make([]string, 0, len(Keys))
	for _, k := range Keys {
		if v := strings.TrimSpace(s[k]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// Flatten parses raw and returns its display text.
func Flatten(raw string) (string, error) {
	s, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return s.Flatten(), nil
}
