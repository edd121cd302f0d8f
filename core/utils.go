package core

import "strings"

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanPhone drops the usual separators so "+1 (555) 555-0100" validates as E.164.
func CleanPhone(s string) string {
	return phoneSeparators.Replace(strings.TrimSpace(s))
}

// Ellipsize cuts `s` to at most n runes, marking the cut with "...".
func Ellipsize(s string, n int) string {
	r := []rune(s)
	if n < 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
