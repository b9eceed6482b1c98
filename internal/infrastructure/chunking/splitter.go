package chunking

import (
	"strings"
	"unicode/utf8"
)

// boundaryTiers lists split points from most to least structural.
var boundaryTiers = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" ", "\t"},
}

// Splitter cuts text into rune windows of at most ChunkSize that overlap by
// exactly Overlap runes. A window ends at the most structural boundary it
// contains and falls back to a hard cut.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 4000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)

	out := make([]string, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	start := 0
	for {
		end := start + s.ChunkSize
		if end >= len(runes) {
			out = appendChunk(out, string(runes[start:]))
			break
		}

		cut := s.boundary(runes, start, end)
		out = appendChunk(out, string(runes[start:cut]))
		start = cut - s.Overlap
	}
	return out
}

// boundary returns the cut position in (start+Overlap, end]. Requiring the
// cut past the overlap keeps every window moving forward.
func (s *Splitter) boundary(runes []rune, start, end int) int {
	lo := start + s.Overlap + 1
	window := string(runes[lo:end])

	for _, tier := range boundaryTiers {
		best := -1
		for _, sep := range tier {
			idx := strings.LastIndex(window, sep)
			if idx < 0 {
				continue
			}
			if after := idx + len(sep); after > best {
				best = after
			}
		}
		if best > 0 {
			return lo + utf8.RuneCountInString(window[:best])
		}
	}
	return end
}

// appendChunk drops whitespace-only windows, so a long enough whitespace run
// leaves a gap in coverage and breaks the overlap with the next chunk.
func appendChunk(out []string, chunk string) []string {
	if strings.TrimSpace(chunk) == "" {
		return out
	}
	return append(out, chunk)
}
