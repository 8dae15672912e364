// Package narration prepares one narration line for synthesis: it cleans the
// text and cuts it into phases short enough for a synthesis backend.
package narration

import (
	"regexp"
	"strings"
)

var (
	ellipsisRun = regexp.MustCompile(`\.{3,}`)
	bangRun     = regexp.MustCompile(`!{2,}`)
	questionRun = regexp.MustCompile(`\?{2,}`)
)

// Normalize trims text, collapses ellipses and repeated "!" / "?" into a
// single mark, and guarantees the result ends in '.', '!' or '?'.
//
// Callers reject empty or whitespace-only text before calling Normalize.
func Normalize(text string) string {
	clean := strings.TrimSpace(text)
	clean = ellipsisRun.ReplaceAllString(clean, ".")
	clean = bangRun.ReplaceAllString(clean, "!")
	clean = questionRun.ReplaceAllString(clean, "?")
	if !HasTerminal(clean) {
		clean += "."
	}
	return clean
}

// HasTerminal reports whether s ends with sentence-ending punctuation.
func HasTerminal(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}
