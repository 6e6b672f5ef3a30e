// Package chunker splits extracted document text into fixed-size
// overlapping word chunks for embedding.
package chunker

import (
	"errors"
	"regexp"
	"strings"
)

var multiNewline = regexp.MustCompile(`\n{3,}`)

// Chunker emits chunks of Size words, each overlapping the previous one by
// Overlap words. Identical input always yields an identical chunk sequence.
type Chunker struct {
	size    int
	overlap int
}

// New validates the parameters. Overlap >= size would make the loop stop
// advancing, so it is rejected here instead of guarded at chunk time.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errors.New("chunker: size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunker: overlap must be in [0, size)")
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text on whitespace and joins each window of words with single
// spaces. The last chunk may be shorter than the configured size. Empty text
// yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []string
	step := c.size - c.overlap
	for i := 0; i < len(words); i += step {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// ChunkPages concatenates page texts and chunks the result. Pages with no
// extractable text contribute nothing.
func (c *Chunker) ChunkPages(pages []string) []string {
	var nonEmpty []string
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return c.Chunk(strings.Join(nonEmpty, "\n"))
}

// CleanText normalizes line endings and collapses runs of blank lines before
// chunking.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r", "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
