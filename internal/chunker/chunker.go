// Package chunker splits extracted text into overlapping, boundary-aligned
// chunks sized for embedding.
package chunker

import (
	"errors"
	"fmt"
)

const (
	DefaultSize    = 2500
	DefaultOverlap = 500
)

var ErrInvalidConfig = errors.New("invalid chunker config")

// Chunk is one slice of the input. Start and End are rune offsets into the
// original text.
type Chunk struct {
	Index   int
	Content string
	Start   int
	End     int
}

type boundary struct {
	sep []rune
	// keep is how many runes of sep stay with the left chunk.
	keep int
}

// Boundaries in order of preference.
var boundaries = []boundary{
	{sep: []rune("\n\n"), keep: 2},
	{sep: []rune("\n"), keep: 1},
	{sep: []rune(". "), keep: 1},
	{sep: []rune("! "), keep: 1},
	{sep: []rune("? "), keep: 1},
	{sep: []rune(" "), keep: 1},
}

type Splitter struct {
	size    int
	overlap int
}

type Option func(*Splitter)

func WithSize(size int) Option {
	return func(s *Splitter) { s.size = size }
}

func WithOverlap(overlap int) Option {
	return func(s *Splitter) { s.overlap = overlap }
}

func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{size: DefaultSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, s.size)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, s.size, s.overlap)
	}
	return s, nil
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

// Split is deterministic. Every chunk is non-empty and at most Size runes, and
// each chunk after the first begins with exactly the last Overlap runes of its
// predecessor. Empty input yields no chunks.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for {
		if len(runes)-start <= s.size {
			chunks = append(chunks, Chunk{
				Index:   len(chunks),
				Content: string(runes[start:]),
				Start:   start,
				End:     len(runes),
			})
			return chunks
		}

		end := s.cut(runes, start)
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: string(runes[start:end]),
			Start:   start,
			End:     end,
		})
		start = end - s.overlap
	}
}

// cut picks the end of the chunk starting at start. The result lies in
// (start+overlap, start+size] so the next chunk always advances.
func (s *Splitter) cut(runes []rune, start int) int {
	hi := start + s.size
	window := (s.size - s.overlap) / 10
	if window < 1 {
		window = 1
	}
	lo := hi - window
	if lo <= start+s.overlap {
		lo = start + s.overlap + 1
	}
	if lo > hi {
		return hi
	}

	for _, b := range boundaries {
		if end, ok := lastBoundary(runes, lo, hi, b); ok {
			return end
		}
	}
	return hi
}

// lastBoundary finds the rightmost occurrence of b whose cut point falls in [lo, hi].
func lastBoundary(runes []rune, lo, hi int, b boundary) (int, bool) {
	for cut := hi; cut >= lo; cut-- {
		p := cut - b.keep
		if p < 0 || p+len(b.sep) > len(runes) {
			continue
		}
		if matchAt(runes, p, b.sep) {
			return cut, true
		}
	}
	return 0, false
}

func matchAt(runes []rune, p int, sep []rune) bool {
	for i, r := range sep {
		if runes[p+i] != r {
			return false
		}
	}
	return true
}

// EstimateCount is the expected number of chunks for a text of length runes.
func EstimateCount(length, size, overlap int) int {
	if length <= 0 {
		return 0
	}
	if length <= size {
		return 1
	}
	step := size - overlap
	return (length - overlap + step - 1) / step
}
