package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"file-qa/internal/models"

	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkText splits text into overlapping chunks of at most size runes, preferring
// paragraph, line, sentence and word boundaries before a hard cut. A separator
// stays attached to the start of the piece that follows it, so a chunk may begin
// with ". " and no text is lost at a boundary. Non-positive size and negative
// overlap fall back to the defaults; zero overlap means adjacent chunks share
// nothing. Output is deterministic.
func ChunkText(text string, size, overlap int) ([]models.Chunk, error) {
	if size <= 0 {
		size = models.DefaultChunkSize
	}
	if overlap < 0 {
		overlap = models.DefaultChunkOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(models.ChunkSeparators),
		textsplitter.WithKeepSeparator(true),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)

	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %v", err)
	}

	chunks := make([]models.Chunk, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Index:   len(chunks),
			Content: part,
		})
	}
	return chunks, nil
}
