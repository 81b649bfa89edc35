package service

import (
	"fmt"
	"strings"

	"docchat/internal/domain"
)

// noInformationAnswer is returned verbatim when retrieval finds no
// context, so the model never gets a chance to invent one.
const noInformationAnswer = "I don't have enough information in my knowledge base to answer this question."

const promptHeader = `You are a helpful assistant that answers questions based on the provided context.

INSTRUCTIONS:
- Use ONLY the context below to answer the question
- If the context doesn't contain enough information, say "I don't have enough information in my knowledge base to answer this question."
- Be concise but thorough in your answers
- If relevant, mention which source the information comes from`

const previewLimit = 150

// buildPrompt renders the retrieved chunks and the question into a
// single grounded prompt. Each chunk is labeled with its source file so
// the model can attribute its answer.
func buildPrompt(results []domain.SearchResult, question string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\nCONTEXT:\n")
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "[Source: %s]\n%s\n", r.Chunk.Source, r.Chunk.Text)
	}
	fmt.Fprintf(&b, "\nQUESTION: %s\n\nANSWER:", question)
	return b.String()
}

// citations lists each distinct source once, in retrieval order, with a
// short single-line preview of the best-matching chunk from it.
func citations(results []domain.SearchResult) []domain.Citation {
	seen := make(map[string]struct{}, len(results))
	out := make([]domain.Citation, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.Chunk.Source]; dup {
			continue
		}
		seen[r.Chunk.Source] = struct{}{}
		out = append(out, domain.Citation{
			Source:  r.Chunk.Source,
			Preview: preview(r.Chunk.Text),
		})
	}
	return out
}

func preview(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= previewLimit {
		return flat
	}
	return string(runes[:previewLimit]) + "..."
}
