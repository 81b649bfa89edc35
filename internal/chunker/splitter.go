package chunker

import (
	"fmt"
	"strconv"
	"unicode"

	"docchat/internal/domain"
)

// Splitter cuts document text into overlapping fixed-size chunks.
//
// Chunks advance by size-overlap runes, so consecutive chunks from the
// same document always share exactly overlap runes and concatenating
// chunk texts with the overlaps stripped reconstructs the document.
// Within the tail of each window the splitter prefers to end a chunk
// on a paragraph break, then a sentence break, then plain whitespace;
// when no such boundary exists it cuts hard at exactly size runes. A
// chunk never exceeds size runes.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter validates the chunking parameters and returns a splitter.
// size must be positive and overlap must satisfy 0 <= overlap < size.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("chunk size must be positive, got %d", size), nil).
			WithHint("set the chunk size to a value greater than zero")
	}
	if overlap < 0 || overlap >= size {
		return nil, domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("chunk overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d", overlap, size), nil).
			WithHint("set the chunk overlap to a value smaller than the chunk size")
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Chunk splits a document into ordered chunks with rune offsets into
// the original content. An empty document fails fast rather than
// producing zero chunks silently.
func (s *Splitter) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	runes := []rune(doc.Content)
	if len(runes) == 0 {
		return nil, domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("document %s is empty", doc.Name), nil).
			WithHint("remove empty files from the docs directory")
	}

	stride := s.size - s.overlap
	// Boundary search is confined to the last half-stride of each
	// window so every chunk still advances by at least one rune.
	lookback := stride / 2

	var chunks []domain.Chunk
	start := 0
	for idx := 0; ; idx++ {
		if start+s.size >= len(runes) {
			chunks = append(chunks, s.newChunk(doc, idx, start, len(runes), runes))
			break
		}
		end := start + s.size
		if lookback > 0 {
			if b := boundary(runes, end-lookback, end); b > 0 {
				end = b
			}
		}
		chunks = append(chunks, s.newChunk(doc, idx, start, end, runes))
		start = end - s.overlap
	}
	return chunks, nil
}

func (s *Splitter) newChunk(doc domain.Document, idx, start, end int, runes []rune) domain.Chunk {
	return domain.Chunk{
		DocumentID: doc.ID,
		ChunkID:    doc.ID + ":" + strconv.Itoa(idx),
		Index:      idx,
		Start:      start,
		End:        end,
		Text:       string(runes[start:end]),
		Source:     doc.Name,
	}
}

// boundary returns the latest natural break position in (lo, hi], or 0
// when the window contains none. Paragraph breaks win over sentence
// breaks, which win over plain whitespace.
func boundary(runes []rune, lo, hi int) int {
	if lo < 1 {
		lo = 1
	}
	for i := hi - 1; i >= lo; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := hi - 1; i >= lo; i-- {
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	for i := hi - 1; i >= lo; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
