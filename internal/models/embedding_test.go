package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkIDAndSource(t *testing.T) {
	assert.Equal(t, "doc_0", ChunkID(0))
	assert.Equal(t, "doc_12", ChunkID(12))
	assert.Equal(t, "chunk_3", ChunkSource(3))

	n, ok := ChunkIndex("doc_12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	_, ok = ChunkIndex("chunk_3")
	assert.False(t, ok)
	_, ok = ChunkIndex("doc_x")
	assert.False(t, ok)
}

func TestSortResultsBreaksTiesByChunkIndex(t *testing.T) {
	results := []QueryResult{
		{ID: "doc_10", Distance: 0.2},
		{ID: "other", Distance: 0.2},
		{ID: "doc_2", Distance: 0.2},
		{ID: "doc_11", Distance: 0.1},
		{ID: "doc_1", Distance: 0.2},
	}
	SortResults(results)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"doc_11", "doc_1", "doc_2", "doc_10", "other"}, ids)
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	all := []error{
		ErrUnsupportedFileType, ErrEmptyDocument, ErrModelUnavailable, ErrStoreInitialization,
		ErrLengthMismatch, ErrInvalidCredential, ErrNoCredential, ErrService, ErrRateLimited, ErrNoDocument,
	}
	for i, a := range all {
		wrapped := fmt.Errorf("%w: context", a)
		for j, b := range all {
			assert.Equal(t, i == j, errors.Is(wrapped, b), "%v vs %v", a, b)
		}
	}
}
