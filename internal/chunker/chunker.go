// Package chunker splits document text into overlapping, sentence-aligned chunks.
package chunker

import (
	"maps"
	"strings"
	"unicode"

	"github.com/kailas-cloud/cortex/internal/domain/chunk"
	"github.com/kailas-cloud/cortex/internal/domain/document"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 512

// DefaultChunkOverlap is the default number of characters shared by consecutive chunks.
const DefaultChunkOverlap = 50

// Chunker packs whole sentences into chunks of at most chunkSize characters.
// Consecutive chunks share up to overlap characters, cut at a word start.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits doc into chunks carrying its fingerprint, origin and extra metadata.
func (c *Chunker) Chunk(doc document.Document) []chunk.Chunk {
	texts := c.Split(doc.Text)
	if len(texts) == 0 {
		return nil
	}

	fp := doc.Fingerprint()
	out := make([]chunk.Chunk, len(texts))
	for i, text := range texts {
		out[i] = chunk.Chunk{
			ID:   chunk.ID(fp, i),
			Text: text,
			Metadata: chunk.Metadata{
				OriginPath:     doc.OriginPath,
				DocFingerprint: fp,
				Position:       i,
				DocChunks:      len(texts),
				Extra:          maps.Clone(doc.Extra),
			},
		}
	}
	return out
}

// Split returns the chunk texts of text. Every chunk is a substring of text
// with surrounding whitespace trimmed; blank text yields no chunks.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	bounds := c.boundaries(runes)

	var out []string
	start := 0
	for {
		for start < n && unicode.IsSpace(runes[start]) {
			start++
		}
		if start == n {
			break
		}
		end := lastBoundaryWithin(bounds, start, start+c.chunkSize)
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == n {
			break
		}
		start = c.nextStart(runes, bounds, start, end)
	}
	return out
}

// nextStart picks where the chunk after [start, end) begins. It backs up by
// the overlap to a word start, unless that would not let the next chunk
// reach past end.
func (c *Chunker) nextStart(runes []rune, bounds []int, start, end int) int {
	if c.overlap == 0 {
		return end
	}
	s := end - c.overlap
	for s < end && s > 0 && !unicode.IsSpace(runes[s-1]) {
		s++
	}
	if s <= start || s >= end {
		return end
	}
	if next := firstBoundaryAfter(bounds, end); next-s > c.chunkSize {
		return end
	}
	return s
}

// boundaries returns ascending cut points ending with len(runes). Any two
// neighbours are at most chunkSize apart.
func (c *Chunker) boundaries(runes []rune) []int {
	var bounds []int
	prev := 0
	for _, end := range sentenceEnds(runes) {
		bounds = append(bounds, c.splitLong(runes, prev, end)...)
		prev = end
	}
	return bounds
}

// splitLong cuts the segment [from, to) into pieces no longer than chunkSize,
// preferring to cut before the last whitespace inside each window.
func (c *Chunker) splitLong(runes []rune, from, to int) []int {
	var cuts []int
	for to-from > c.chunkSize {
		limit := from + c.chunkSize
		cut := limit
		for j := limit; j > from; j-- {
			if unicode.IsSpace(runes[j]) {
				cut = j
				break
			}
		}
		cuts = append(cuts, cut)
		from = cut
	}
	return append(cuts, to)
}

// sentenceEnds returns the positions just past each sentence, including the
// whitespace that follows it. A sentence ends at . ! or ? followed by
// whitespace, or at a blank line. The last position is always len(runes).
func sentenceEnds(runes []rune) []int {
	n := len(runes)
	var ends []int
	for i := 0; i < n; i++ {
		r := runes[i]
		terminal := (r == '.' || r == '!' || r == '?') && i+1 < n && unicode.IsSpace(runes[i+1])
		paragraph := r == '\n' && i+1 < n && runes[i+1] == '\n'
		if !terminal && !paragraph {
			continue
		}
		j := i + 1
		for j < n && unicode.IsSpace(runes[j]) {
			j++
		}
		if j < n {
			ends = append(ends, j)
		}
		i = j - 1
	}
	return append(ends, n)
}

func lastBoundaryWithin(bounds []int, start, limit int) int {
	end := -1
	for _, b := range bounds {
		if b <= start {
			continue
		}
		if b > limit {
			break
		}
		end = b
	}
	if end < 0 {
		// Unreachable while neighbouring bounds are at most chunkSize apart.
		end = min(limit, bounds[len(bounds)-1])
	}
	return end
}

func firstBoundaryAfter(bounds []int, pos int) int {
	for _, b := range bounds {
		if b > pos {
			return b
		}
	}
	return bounds[len(bounds)-1]
}
