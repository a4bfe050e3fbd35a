// Package processing normalises document text and extracts ranking keywords.
package processing

import (
	"regexp"
	"strings"
)

var (
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	urlRe      = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRe    = regexp.MustCompile(`\S+@\S+`)
	nonWordRe  = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:'-]`)
	spaceRe    = regexp.MustCompile(`\s+`)
	punctRunRe = regexp.MustCompile(`[.,!?;:]{2,}`)
)

// CleanText strips markup remnants, URLs and emails from raw text and
// normalises the remainder down to indexable prose.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	t := tagRe.ReplaceAllString(text, "")
	t = urlRe.ReplaceAllString(t, "")
	t = emailRe.ReplaceAllString(t, "")
	t = nonWordRe.ReplaceAllString(t, " ")
	t = spaceRe.ReplaceAllString(t, " ")
	t = punctRunRe.ReplaceAllString(t, ".")
	return strings.TrimSpace(t)
}

// NormalizeWhitespace joins non-empty lines with single spaces. Parsers use
// it on extracted DOM text before CleanText runs.
func NormalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			parts = append(parts, s)
		}
	}
	return spaceRe.ReplaceAllString(strings.Join(parts, " "), " ")
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
