// Package speech turns streamed assistant text into audible speech through
// the piper synthesizer, one sentence at a time so playback starts before
// the full response has arrived.
package speech

import (
	"regexp"
	"strings"
)

// A sentence ends at . ! or ? followed by whitespace, or at the very end of
// the buffered text.
var sentenceEndings = regexp.MustCompile(`[.!?]\s+|[.!?]$`)

// SentenceBuffer accumulates streamed text chunks and yields complete
// sentences as they form. Not safe for concurrent use.
type SentenceBuffer struct {
	remainder string
}

// Add appends a chunk and returns any sentences it completed, trimmed.
func (b *SentenceBuffer) Add(text string) []string {
	b.remainder += text
	var sentences []string
	for {
		loc := sentenceEndings.FindStringIndex(b.remainder)
		if loc == nil {
			break
		}
		if sentence := strings.TrimSpace(b.remainder[:loc[1]]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		b.remainder = b.remainder[loc[1]:]
	}
	return sentences
}

// Flush returns any remaining text as a final sentence and empties the
// buffer. Returns "" when nothing is pending.
func (b *SentenceBuffer) Flush() string {
	remaining := strings.TrimSpace(b.remainder)
	b.remainder = ""
	return remaining
}
