package narration

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sentenceBreak matches terminal punctuation followed by whitespace. The
// punctuation stays with the sentence before the break.
var sentenceBreak = regexp.MustCompile(`([.!?]+)\s+`)

// wordSplitFactor is how far past maxChars a phase may run before it is
// broken at word boundaries instead of being sent as one sentence.
const wordSplitFactor = 1.5

// SplitPhases breaks text into phases of at most maxChars characters,
// preferring sentence boundaries. Sentences are packed greedily; a sentence
// that does not fit closes the current phase and starts the next one.
// A phase longer than 1.5 × maxChars (only possible when one sentence alone
// is that long) is re-split at word boundaries into chunks of at most
// maxChars. A single word longer than maxChars is emitted as its own chunk.
//
// Lengths are counted in runes. maxChars <= 0 disables splitting.
func SplitPhases(text string, maxChars int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	if maxChars <= 0 {
		return []string{strings.Join(sentences, " ")}
	}

	var (
		phases  []string
		current strings.Builder
		curLen  int
	)
	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if curLen > 0 && curLen+1+n > maxChars {
			phases = append(phases, current.String())
			current.Reset()
			curLen = 0
		}
		if curLen > 0 {
			current.WriteByte(' ')
			curLen++
		}
		current.WriteString(s)
		curLen += n
	}
	if curLen > 0 {
		phases = append(phases, current.String())
	}

	limit := int(float64(maxChars) * wordSplitFactor)
	out := make([]string, 0, len(phases))
	for _, p := range phases {
		if utf8.RuneCountInString(p) > limit {
			out = append(out, splitWords(p, maxChars)...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitSentences cuts text at sentence breaks, drops empty pieces and makes
// sure every sentence carries terminal punctuation.
func splitSentences(text string) []string {
	var (
		out  []string
		last int
	)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || isOnlyTerminal(s) {
			return
		}
		if !HasTerminal(s) {
			s += "."
		}
		out = append(out, s)
	}
	for _, m := range sentenceBreak.FindAllStringSubmatchIndex(text, -1) {
		// m[3] is the end of the punctuation group.
		add(text[last:m[3]])
		last = m[1]
	}
	add(text[last:])
	return out
}

func isOnlyTerminal(s string) bool {
	return strings.Trim(s, ".!?") == ""
}

func splitWords(phase string, maxChars int) []string {
	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	for _, w := range strings.Fields(phase) {
		n := utf8.RuneCountInString(w)
		if curLen > 0 && curLen+1+n > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
			curLen = 0
		}
		if curLen > 0 {
			current.WriteByte(' ')
			curLen++
		}
		current.WriteString(w)
		curLen += n
	}
	if curLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
