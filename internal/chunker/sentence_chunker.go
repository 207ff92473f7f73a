package chunker

import (
	"strings"
	"unicode"
)

// SentenceChunker splits text into sentence-aligned chunks bounded by a
// character budget, optionally seeding each chunk with the tail sentences
// of the previous one.
type SentenceChunker struct {
	targetSize int
	overlap    int
}

// NewSentenceChunker creates a chunker with the given character budget and
// overlap. Out-of-range values fall back to safe defaults.
func NewSentenceChunker(targetSize, overlap int) *SentenceChunker {
	if targetSize <= 0 {
		targetSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize / 2
	}
	return &SentenceChunker{targetSize: targetSize, overlap: overlap}
}

// Chunk splits text into ordered chunks. Sentences are accumulated greedily
// until adding the next one would push the running character count past the
// budget; a single sentence longer than the budget still becomes its own
// chunk, never split mid-word. The result is deterministic for a given
// input and configuration.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	size := 0

	for _, sentence := range sentences {
		if size+len(sentence) > c.targetSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current, size = c.overlapTail(current)
			// Shrink the seed from the oldest end so the seed plus the
			// incoming sentence stays within the budget.
			for len(current) > 0 && size+len(sentence) > c.targetSize {
				size -= len(current[0]) + 1
				current = current[1:]
			}
		}
		current = append(current, sentence)
		size += len(sentence) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// overlapTail walks backward through a just-closed chunk's sentences until
// the overlap budget is covered, returning the seed for the next chunk.
func (c *SentenceChunker) overlapTail(closed []string) ([]string, int) {
	if c.overlap <= 0 {
		return nil, 0
	}
	size := 0
	i := len(closed)
	for i > 0 && size < c.overlap {
		i--
		size += len(closed[i]) + 1
	}
	seed := make([]string, len(closed)-i)
	copy(seed, closed[i:])
	return seed, size
}

// splitSentences cuts text at `.`, `!` or `?` followed by whitespace,
// keeping the punctuation with its sentence. Trailing text without a
// terminator is kept as a final sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
