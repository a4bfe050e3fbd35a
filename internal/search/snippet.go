package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Snippet extracts a window of at most maxLen bytes centred on the earliest
// occurrence of any term. When no term matches, the head of the text is
// returned. Truncated edges are ellipsised.
func Snippet(text string, terms []string, maxLen int) string {
	if text == "" {
		return ""
	}

	lower := strings.ToLower(text)
	best := -1
	for _, term := range terms {
		pos := strings.Index(lower, strings.ToLower(term))
		if pos >= 0 && (best == -1 || pos < best) {
			best = pos
		}
	}

	if best == -1 {
		if len(text) <= maxLen {
			return text
		}
		return text[:runeFloor(text, maxLen)] + "..."
	}

	start := best - maxLen/2
	if start < 0 {
		start = 0
	}
	end := best + maxLen/2
	if end > len(text) {
		end = len(text)
	}
	start = runeFloor(text, start)
	end = runeCeil(text, end)

	out := text[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}

// runeFloor moves i back to the nearest rune boundary.
func runeFloor(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves i forward to the nearest rune boundary.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// Highlight wraps every case-insensitive occurrence of the terms in <mark>
// tags, preserving the original casing. Single-character terms are skipped;
// they mark up too much to be useful.
func Highlight(text string, terms []string) string {
	for _, term := range terms {
		if utf8.RuneCountInString(term) < 2 {
			continue
		}
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(term))
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "<mark>$0</mark>")
	}
	return text
}
