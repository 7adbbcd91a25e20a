// Package textsplit splits article text into overlapping passages while
// keeping inline image markers intact.
package textsplit

import (
	"strings"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators lists split boundaries in preference order: section
// headings, paragraph breaks, line breaks, sentence ends, spaces, and
// finally individual characters.
var DefaultSeparators = []string{"\n## ", "\n### ", "\n\n", "\n", ". ", " ", ""}

// Splitter performs recursive boundary-aware text splitting. It tries each
// separator in order and recurses into oversized pieces with the remaining
// separators, then merges adjacent pieces into chunks of roughly ChunkSize
// characters with ChunkOverlap characters carried over between neighbours.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a splitter with the given chunk size and overlap.
// Non-positive values fall back to the defaults.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 5
		}
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
}

// Split breaks text into chunks. Image markers must be protected with
// Protect before calling; the splitter itself is marker-agnostic apart from
// treating placeholder tokens as indivisible at the character level.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitRecursive(text, s.separators)
}

func (s *Splitter) splitRecursive(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	splits := splitWithSeparator(text, separator)

	var chunks []string
	var goodSplits []string
	for _, piece := range splits {
		if len(piece) < s.chunkSize {
			goodSplits = append(goodSplits, piece)
			continue
		}
		if len(goodSplits) > 0 {
			chunks = append(chunks, s.mergeSplits(goodSplits)...)
			goodSplits = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.splitRecursive(piece, rest)...)
		}
	}
	if len(goodSplits) > 0 {
		chunks = append(chunks, s.mergeSplits(goodSplits)...)
	}
	return chunks
}

// splitWithSeparator splits text on sep, keeping the separator attached to
// the start of the following piece so no characters are lost. The empty
// separator splits into atomic units (see atomicUnits).
func splitWithSeparator(text, sep string) []string {
	if sep == "" {
		return atomicUnits(text)
	}
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// atomicUnits breaks text into single characters, except that protected
// image-marker placeholders stay whole. A marker must never straddle a
// chunk boundary, even in the degenerate no-separator case.
func atomicUnits(text string) []string {
	var units []string
	for len(text) > 0 {
		if loc := placeholderPattern.FindStringIndex(text); loc != nil && loc[0] == 0 {
			units = append(units, text[:loc[1]])
			text = text[loc[1]:]
			continue
		}
		var size int
		for i := 1; i <= len(text); i++ {
			if isRuneStart(text, i) {
				size = i
				break
			}
		}
		units = append(units, text[:size])
		text = text[size:]
	}
	return units
}

func isRuneStart(s string, i int) bool {
	return i == len(s) || (s[i]&0xC0) != 0x80
}

// mergeSplits greedily packs adjacent pieces into chunks of up to chunkSize
// characters, then re-seeds the next chunk with trailing pieces totalling at
// most chunkOverlap characters so content straddling a boundary appears in
// both neighbours.
func (s *Splitter) mergeSplits(splits []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range splits {
		if total+len(piece) > s.chunkSize && total > 0 {
			if chunk := joinTrimmed(current); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// Drop pieces from the front until the carried tail fits
			// within the overlap budget.
			for total > s.chunkOverlap || (total+len(piece) > s.chunkSize && total > 0) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += len(piece)
	}
	if chunk := joinTrimmed(current); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func joinTrimmed(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}
