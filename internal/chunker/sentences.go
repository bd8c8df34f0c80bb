package chunker

import (
	"regexp"
	"strings"
)

// sentenceRe finds runs of text terminated by ./!/? (or the remainder of the
// string), the same naive boundary heuristic used elsewhere in this codebase
// for splitting prose without pulling in a full NLP sentence segmenter.
var sentenceRe = regexp.MustCompile(`(?s)([^.!?]+[.!?]+|[^.!?]+$)`)

// splitSentences breaks text into trimmed, non-empty sentences in order.
func splitSentences(text string) []string {
	matches := sentenceRe.FindAllString(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
