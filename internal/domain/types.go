package domain

// Document is a single file loaded from the docs directory.
// It is immutable once loaded; chunking consumes it.
type Document struct {
	ID      string
	Path    string
	Name    string
	Content string
}

// Chunk is a contiguous slice of a document's text, the unit of
// embedding and retrieval. Start and End are rune offsets into the
// document content.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Index      int
	Start      int
	End        int
	Text       string
	Source     string
}

// SearchResult pairs a chunk with its cosine distance from the query.
// Lower distance means more similar.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// Citation names a source file and a short preview of the chunk text
// that grounded an answer.
type Citation struct {
	Source  string
	Preview string
}

// Answer is the generated response plus the citations for the chunks
// it was grounded on, in retrieval order.
type Answer struct {
	Text    string
	Sources []Citation
}
