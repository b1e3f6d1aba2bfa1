package metadata

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// NormalizeList coerces a decoded JSON value into a list of display strings.
//
// Structured references such as {"key": "/authors/OL2873756A"} carry no
// display value and are dropped. Objects with a "name" contribute the name.
// A scalar becomes a one-element list. Returns nil when nothing is left.
func NormalizeList(value any) []string {
	if value == nil {
		return nil
	}

	var out []string
	switch v := value.(type) {
	case []string:
		for _, item := range v {
			if item != "" {
				out = append(out, item)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := listItem(item); ok {
				out = append(out, s)
			}
		}
	default:
		if s, ok := listItem(v); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func listItem(item any) (string, bool) {
	switch v := item.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case bool:
		return "", false
	case map[string]any:
		if _, isRef := v["key"]; isRef {
			return "", false
		}
		if name, ok := v["name"].(string); ok && name != "" {
			return name, true
		}
		return "", false
	case float64:
		if v == 0 {
			return "", false
		}
	}
	return fmt.Sprint(item), true
}

// NormalizeDescription unwraps {"value": "..."} description objects.
func NormalizeDescription(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if inner, ok := v["value"]; ok {
			if inner == nil {
				return ""
			}
			return fmt.Sprint(inner)
		}
	}
	return fmt.Sprint(value)
}

// ExtractSeries returns the first non-empty series name from a string or list.
func ExtractSeries(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				return s
			}
		}
	}
	return ""
}

// SeriesFromSubjects finds a subject formatted as "series: <name>".
// The prefix match is case-insensitive.
func SeriesFromSubjects(subjects any) string {
	for _, subject := range NormalizeList(subjects) {
		trimmed := strings.TrimSpace(subject)
		if !strings.HasPrefix(strings.ToLower(trimmed), "series:") {
			continue
		}
		if name := strings.TrimSpace(trimmed[len("series:"):]); name != "" {
			return name
		}
	}
	return ""
}

// SeriesFromSubtitle treats a subtitle mentioning "series" as the series name.
func SeriesFromSubtitle(subtitle string) string {
	if strings.Contains(strings.ToLower(subtitle), "series") {
		return strings.TrimSpace(subtitle)
	}
	return ""
}

// NormalizeLanguages maps language codes to their BCP 47 base ("eng" -> "en").
// Values that do not parse are kept lower-cased. Duplicates are removed.
func NormalizeLanguages(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, raw := range values {
		code := strings.TrimSpace(raw)
		if i := strings.LastIndex(code, "/"); i >= 0 {
			code = code[i+1:]
		}
		if code == "" {
			continue
		}
		if base, err := language.ParseBase(code); err == nil {
			code = base.String()
		} else {
			code = strings.ToLower(code)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// NormalizeISBN strips hyphens and spaces from an identifier.
func NormalizeISBN(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	return normalized
}
