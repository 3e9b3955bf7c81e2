package memory

import (
	"strings"
	"unicode"
)

// DefaultMaxChunkLength is the soft upper bound on chunk content size.
const DefaultMaxChunkLength = 1000

// Chunker splits long text into bounded, order-preserving segments on
// sentence boundaries.
type Chunker struct {
	maxLen int
}

// NewChunker returns a chunker with the given maximum chunk length.
// Non-positive values fall back to DefaultMaxChunkLength.
func NewChunker(maxLen int) *Chunker {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}
	return &Chunker{maxLen: maxLen}
}

// MaxLength returns the configured maximum chunk length.
func (c *Chunker) MaxLength() int { return c.maxLen }

// Chunk splits text into segments no longer than the configured maximum,
// accumulating sentences greedily and flushing when the next sentence
// would overflow. A single sentence longer than the maximum is emitted as
// its own oversized chunk rather than split further. Joining the returned
// chunks with single spaces reproduces the input up to whitespace
// normalization.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	units := splitSentences(text)
	var chunks []string
	var cur strings.Builder
	for _, unit := range units {
		if cur.Len() == 0 {
			cur.WriteString(unit)
			continue
		}
		if cur.Len()+1+len(unit) > c.maxLen {
			chunks = append(chunks, cur.String())
			cur.Reset()
			cur.WriteString(unit)
			continue
		}
		cur.WriteString(" ")
		cur.WriteString(unit)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// splitSentences splits text into sentence-like units on '.', '!' or '?'
// followed by whitespace (or end of input). The terminator stays with its
// sentence; interior punctuation like "1.5" does not split.
func splitSentences(text string) []string {
	var units []string
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if unit := strings.TrimSpace(b.String()); unit != "" {
			units = append(units, unit)
		}
		b.Reset()
		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
		}
	}
	if tail := strings.TrimSpace(b.String()); tail != "" {
		units = append(units, tail)
	}
	return units
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
