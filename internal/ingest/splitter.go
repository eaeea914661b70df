package ingest

import "unicode"

// Chunking contract shared with the indexed data: consumers of previously
// indexed namespaces rely on these exact values.
const (
	ChunkSize    = 500
	ChunkOverlap = 100
)

// Split is one chunk of a source page with its start offset (in runes) within
// that page.
type Split struct {
	Text  string
	Start int
}

// Chunker splits page text into overlapping chunks for retrieval indexing.
type Chunker interface {
	Split(text string) []Split
}

// CharacterChunker produces chunks of at most Size runes overlapping by
// Overlap runes, preferring to break at whitespace near the chunk boundary.
type CharacterChunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a chunker honoring the 500/100 contract.
func NewChunker() *CharacterChunker {
	return &CharacterChunker{Size: ChunkSize, Overlap: ChunkOverlap}
}

func (c *CharacterChunker) Split(text string) []Split {
	size := c.Size
	if size <= 0 {
		size = ChunkSize
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = ChunkOverlap
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []Split{{Text: text, Start: 0}}
	}

	var out []Split
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := breakpoint(runes, start, end); cut > start {
			end = cut
		}
		out = append(out, Split{Text: string(runes[start:end]), Start: start})
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakpoint scans back from end for a whitespace boundary within the second
// half of the chunk, so words are not cut mid-token when avoidable.
func breakpoint(runes []rune, start, end int) int {
	limit := start + (end-start)/2
	for i := end - 1; i > limit; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}
