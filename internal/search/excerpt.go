package search

import (
	"strings"
)

const maxExcerptLen = 500

// excerpt computes the ≤500-character window spec §4.9 describes:
// centered on the first case-insensitive match of any term, with
// "…" prepended/appended when the window doesn't reach the string's
// boundary, and every term occurrence inside the window wrapped in
// <em>…</em> (also case-insensitive).
func excerpt(content string, terms []string) string {
	runes := []rune(content)
	lower := strings.ToLower(content)

	firstAt := -1
	for _, t := range terms {
		if t == "" {
			continue
		}
		if i := strings.Index(lower, strings.ToLower(t)); i >= 0 {
			pos := len([]rune(lower[:i]))
			if firstAt == -1 || pos < firstAt {
				firstAt = pos
			}
		}
	}
	if firstAt == -1 {
		firstAt = 0
	}

	half := maxExcerptLen / 2
	start := firstAt - half
	if start < 0 {
		start = 0
	}
	end := start + maxExcerptLen
	if end > len(runes) {
		end = len(runes)
		start = end - maxExcerptLen
		if start < 0 {
			start = 0
		}
	}

	window := string(runes[start:end])
	window = highlight(window, terms)

	if start > 0 {
		window = "…" + window
	}
	if end < len(runes) {
		window = window + "…"
	}
	return window
}

// highlight wraps every case-insensitive occurrence of any term in s
// with <em>…</em>, scanning left to right and preferring the longest
// matching term at each position so overlapping terms don't produce
// nested tags.
func highlight(s string, terms []string) string {
	lower := strings.ToLower(s)
	lowerTerms := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			lowerTerms = append(lowerTerms, strings.ToLower(t))
		}
	}
	if len(lowerTerms) == 0 {
		return s
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		matchLen := 0
		for _, t := range lowerTerms {
			if strings.HasPrefix(lower[i:], t) && len(t) > matchLen {
				matchLen = len(t)
			}
		}
		if matchLen > 0 {
			b.WriteString("<em>")
			b.WriteString(s[i : i+matchLen])
			b.WriteString("</em>")
			i += matchLen
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
