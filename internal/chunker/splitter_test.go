package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func doc(content string) domain.Document {
	return domain.Document{ID: "d1", Name: "sample.txt", Content: content}
}

func TestNewSplitter_RejectsBadParameters(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -10, 0},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"negative overlap", 100, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSplitter(tt.size, tt.overlap)
			require.Error(t, err)
			assert.True(t, domain.IsConfiguration(err))
		})
	}
}

func TestChunk_EmptyDocumentFailsFast(t *testing.T) {
	s, err := NewSplitter(500, 100)
	require.NoError(t, err)

	_, err = s.Chunk(doc(""))
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

// Boundary-free input exercises the exact fixed-stride windows:
// 2000 characters with size 500 and overlap 100 yield five chunks at
// [0,500) [400,900) [800,1300) [1200,1700) [1600,2000).
func TestChunk_ExactWindowsWithoutBoundaries(t *testing.T) {
	s, err := NewSplitter(500, 100)
	require.NoError(t, err)

	chunks, err := s.Chunk(doc(strings.Repeat("a", 2000)))
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	wantStarts := []int{0, 400, 800, 1200, 1600}
	wantEnds := []int{500, 900, 1300, 1700, 2000}
	for i, ch := range chunks {
		assert.Equal(t, wantStarts[i], ch.Start, "chunk %d start", i)
		assert.Equal(t, wantEnds[i], ch.End, "chunk %d end", i)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, "d1", ch.DocumentID)
		assert.Equal(t, "sample.txt", ch.Source)
	}
}

func TestChunk_ShortDocumentIsSingleChunk(t *testing.T) {
	s, err := NewSplitter(500, 100)
	require.NoError(t, err)

	chunks, err := s.Chunk(doc("just a short note."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, "just a short note.", chunks[0].Text)
}

func TestChunk_InvariantsHoldOnProse(t *testing.T) {
	paragraph := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs! How vexingly quick daft zebras jump?\n\n"
	content := strings.Repeat(paragraph, 20)

	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"500/100", 500, 100},
		{"200/50", 200, 50},
		{"64/0", 64, 0},
		{"50/49", 50, 49},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSplitter(tt.size, tt.overlap)
			require.NoError(t, err)

			chunks, err := s.Chunk(doc(content))
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			runes := []rune(content)
			for i, ch := range chunks {
				assert.LessOrEqual(t, ch.End-ch.Start, tt.size, "chunk %d exceeds size", i)
				assert.Equal(t, string(runes[ch.Start:ch.End]), ch.Text, "chunk %d offsets disagree with text", i)
				if i > 0 {
					overlap := chunks[i-1].End - ch.Start
					assert.Equal(t, tt.overlap, overlap, "chunks %d and %d overlap", i-1, i)
				}
			}
			assert.Equal(t, len(runes), chunks[len(chunks)-1].End, "last chunk must reach document end")

			// Concatenating chunks with overlaps stripped reconstructs
			// the original text exactly.
			var b strings.Builder
			prevEnd := 0
			for _, ch := range chunks {
				text := []rune(ch.Text)
				b.WriteString(string(text[prevEnd-ch.Start:]))
				prevEnd = ch.End
			}
			assert.Equal(t, content, b.String())
		})
	}
}

func TestChunk_PrefersParagraphBoundary(t *testing.T) {
	// A paragraph break sits inside the boundary-search window of the
	// first chunk (last half-stride of [0,100)); the chunk should end
	// right after it instead of cutting at the full size.
	content := strings.Repeat("x", 88) + "\n\n" + strings.Repeat("y", 200)
	s, err := NewSplitter(100, 20)
	require.NoError(t, err)

	chunks, err := s.Chunk(doc(content))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 90, chunks[0].End, "first chunk should end after the paragraph break")
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"))
	assert.Equal(t, 70, chunks[1].Start, "next chunk keeps the exact overlap")
}

func TestChunk_PrefersSentenceOverWhitespace(t *testing.T) {
	// Window tail holds both a sentence end and later plain spaces;
	// the sentence break wins even though a space sits closer to the
	// hard cut point.
	content := strings.Repeat("x", 80) + ". " + "alpha beta gamma " + strings.Repeat("z", 200)
	s, err := NewSplitter(100, 20)
	require.NoError(t, err)

	chunks, err := s.Chunk(doc(content))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Sentence punctuation is at offset 80, so the chunk ends at 81.
	assert.Equal(t, 81, chunks[0].End)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "."))
}

func TestChunk_HardCutWhenNoBoundaryInWindow(t *testing.T) {
	content := strings.Repeat("a", 150) + " " + strings.Repeat("b", 400)
	s, err := NewSplitter(100, 20)
	require.NoError(t, err)

	chunks, err := s.Chunk(doc(content))
	require.NoError(t, err)
	// The only space is outside the first window's search region, so
	// the first chunk is a hard cut at exactly the chunk size.
	assert.Equal(t, 100, chunks[0].End)
	assert.Len(t, chunks[0].Text, 100)
}
