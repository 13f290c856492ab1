package parser

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"file-qa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harborDocument builds n sentences of ordinary filler with one distinctive sentence at answerAt
func harborDocument(answerAt, n int) string {
	sentences := make([]string, n)
	for i := range sentences {
		if i == answerAt {
			sentences[i] = "The quartz lighthouse keeper is named Orsolya Brandt"
			continue
		}
		sentences[i] = fmt.Sprintf("Sentence %02d describes the quiet harbor town and its daily routines", i)
	}
	return strings.Join(sentences, ". ") + "."
}

// sharedOverlap returns the length of the longest suffix of a that prefixes b
func sharedOverlap(a, b string) int {
	best := 0
	for n := 1; n <= len(a) && n <= len(b); n++ {
		if strings.HasPrefix(b, a[len(a)-n:]) {
			best = n
		}
	}
	return best
}

func TestChunkTextSentenceDocument(t *testing.T) {
	doc := harborDocument(14, 30)
	require.Equal(t, 2025, len(doc))

	chunks, err := ChunkText(doc, 512, 128)
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	assert.Equal(t, []int{474, 476, 462, 476, 409}, chunkLengths(chunks))
	assert.True(t, strings.HasSuffix(chunks[0].Content, "daily routines"))
	assert.True(t, strings.HasPrefix(chunks[1].Content, ". Sentence"))
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, i == 2, strings.Contains(c.Content, "lighthouse"), "chunk %d", i)
	}
	for i := 0; i < len(chunks)-1; i++ {
		n := sharedOverlap(chunks[i].Content, chunks[i+1].Content)
		assert.Greater(t, n, 0, "chunks %d and %d share no text", i, i+1)
		assert.LessOrEqual(t, n, 128)
	}
}

func TestChunkTextWordBoundaries(t *testing.T) {
	words := make([]string, 400)
	for i := range words {
		words[i] = fmt.Sprintf("word%03d", i)
	}
	chunks, err := ChunkText(strings.Join(words, " "), 512, 128)
	require.NoError(t, err)

	require.Len(t, chunks, 8)
	for i, c := range chunks {
		assert.Equal(t, 511, utf8.RuneCountInString(c.Content))
		assert.False(t, strings.HasPrefix(c.Content, " ") || strings.HasSuffix(c.Content, " "))
		if i > 0 {
			assert.Equal(t, 127, sharedOverlap(chunks[i-1].Content, c.Content))
		}
	}
	assert.True(t, strings.HasPrefix(chunks[0].Content, "word000 "))
	assert.True(t, strings.HasSuffix(chunks[7].Content, " word399"))
}

func TestChunkTextHardCut(t *testing.T) {
	chunks, err := ChunkText(strings.Repeat("x", 1300), 512, 128)
	require.NoError(t, err)
	assert.Equal(t, []int{512, 512, 512, 148}, chunkLengths(chunks))
}

func TestChunkTextParagraphs(t *testing.T) {
	text := "para one is short.\n\n" + strings.Repeat("y", 600) + "\n\nlast para"
	chunks, err := ChunkText(text, 512, 128)
	require.NoError(t, err)

	assert.Equal(t, []int{18, 511, 217, 9}, chunkLengths(chunks))
	assert.Equal(t, "para one is short.", chunks[0].Content)
	assert.Equal(t, "last para", chunks[3].Content)
}

func TestChunkTextZeroOverlapKeepsEverySeparator(t *testing.T) {
	doc := harborDocument(14, 30)
	chunks, err := ChunkText(doc, 512, 0)
	require.NoError(t, err)

	assert.Equal(t, []int{474, 476, 462, 476, 137}, chunkLengths(chunks))
	var joined strings.Builder
	for i, c := range chunks {
		joined.WriteString(c.Content)
		if i > 0 {
			assert.Zero(t, sharedOverlap(chunks[i-1].Content, c.Content), "chunk %d", i)
		}
	}
	assert.Equal(t, doc, joined.String())
}

func TestChunkTextMultibyteLength(t *testing.T) {
	chunks, err := ChunkText(strings.Repeat("ü", 600), 512, 128)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 512, utf8.RuneCountInString(chunks[0].Content))
}

func TestChunkTextNeverEmpty(t *testing.T) {
	chunks, err := ChunkText(" \n\n \t \n", 512, 128)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = ChunkText("", 512, 128)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkTextDeterministic(t *testing.T) {
	doc := harborDocument(3, 40) + "\n\n" + harborDocument(7, 12)
	first, err := ChunkText(doc, 512, 128)
	require.NoError(t, err)
	second, err := ChunkText(doc, 512, 128)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChunkTextDefaultsAndInvalidOverlap(t *testing.T) {
	doc := harborDocument(14, 30)
	withDefaults, err := ChunkText(doc, 0, -1)
	require.NoError(t, err)
	explicit, err := ChunkText(doc, 512, 128)
	require.NoError(t, err)
	assert.Equal(t, explicit, withDefaults)

	_, err = ChunkText(doc, 100, 100)
	assert.Error(t, err)
}

func chunkLengths(chunks []models.Chunk) []int {
	lengths := make([]int, len(chunks))
	for i, c := range chunks {
		lengths[i] = utf8.RuneCountInString(c.Content)
	}
	return lengths
}
