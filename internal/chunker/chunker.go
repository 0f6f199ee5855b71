// Package chunker splits document text into overlapping windows.
//
// Windows are measured in characters (runes). Each window starts exactly
// overlap characters before the previous window ended, so consecutive chunks
// always share overlap characters. When a natural break point (paragraph,
// line, sentence end or whitespace) exists within the break tolerance before
// the hard cut, the window ends there instead, which only shortens that chunk.
package chunker

import (
	"fmt"
	"unicode"

	"docchat-go/internal/errs"
)

const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the default number of overlapping characters.
	DefaultChunkOverlap = 200
)

// Chunker is immutable after New and safe for concurrent use.
type Chunker struct {
	size      int
	overlap   int
	tolerance int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithBreakTolerance sets how many characters before the hard cut are
// searched for a natural break point. Zero disables snapping.
func WithBreakTolerance(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.tolerance = n
		}
	}
}

// New creates a chunker. It requires 0 <= overlap < size.
func New(size, overlap int, opts ...Option) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunker: need 0 <= overlap < size, got size=%d overlap=%d: %w", size, overlap, errs.ErrInvalidInput)
	}
	c := &Chunker{size: size, overlap: overlap, tolerance: size / 10}
	for _, opt := range opts {
		opt(c)
	}
	// the next window must always start after the current one
	if limit := size - overlap - 1; c.tolerance > limit {
		c.tolerance = limit
	}
	return c, nil
}

// Size returns the window size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered chunks of text. Empty text yields no chunks.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	chunks := make([]string, 0, n/(c.size-c.overlap)+1)
	start := 0
	for {
		end := start + c.size
		if end >= n {
			chunks = append(chunks, string(runes[start:n]))
			return chunks
		}
		end = c.snap(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))
		start = end - c.overlap
	}
}

// snap moves the cut position back to the best break point in
// [end-tolerance, end]. Paragraph breaks win over line breaks, which win over
// sentence ends, which win over plain whitespace.
func (c *Chunker) snap(runes []rune, start, end int) int {
	if c.tolerance == 0 {
		return end
	}
	lo := end - c.tolerance
	if floor := start + c.overlap + 1; lo < floor {
		lo = floor
	}
	for _, isBreak := range breakRules {
		for p := end; p >= lo; p-- {
			if isBreak(runes, p) {
				return p
			}
		}
	}
	return end
}

// Each rule reports whether cutting before runes[p] ends on a break.
var breakRules = []func(runes []rune, p int) bool{
	func(r []rune, p int) bool { return p >= 2 && r[p-1] == '\n' && r[p-2] == '\n' },
	func(r []rune, p int) bool { return p >= 1 && r[p-1] == '\n' },
	func(r []rune, p int) bool {
		if p >= 1 && isCJKSentenceEnd(r[p-1]) {
			return true
		}
		return p >= 2 && unicode.IsSpace(r[p-1]) && isSentenceEnd(r[p-2])
	},
	func(r []rune, p int) bool { return p >= 1 && unicode.IsSpace(r[p-1]) },
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCJKSentenceEnd(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}
