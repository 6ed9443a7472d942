package strutil

import "strings"

// NormalizeUpper trims surrounding whitespace and converts to upper case.
// Use for callsigns, exchange tokens, and other input where case is not significant.
func NormalizeUpper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// NormalizeLower trims surrounding whitespace and converts to lower case.
func NormalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NormalizeFields upper-cases every field and drops the ones that are empty
// after trimming. A nil slice is returned when nothing survives.
func NormalizeFields(fields []string) []string {
	var out []string
	for _, f := range fields {
		f = NormalizeUpper(f)
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// SplitFields splits free-form entry text on whitespace and commas and
// normalizes the resulting tokens.
func SplitFields(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	return NormalizeFields(parts)
}
