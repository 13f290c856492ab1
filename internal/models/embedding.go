package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Chunk represents a split segment of the uploaded document
type Chunk struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// QueryResult is a single nearest-neighbour hit from a vector store
type QueryResult struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Distance float32 `json:"distance"`
}

type PromptResponse struct {
	Query   string
	Source  []string
	Prompt  string
	Content string
	Results []QueryResult
}

// ChunkID returns the vector store id of the chunk at index
func ChunkID(index int) string {
	return fmt.Sprintf("%s%d", DocumentIDPrefix, index)
}

// ChunkSource returns the metadata source label of the chunk at index
func ChunkSource(index int) string {
	return fmt.Sprintf("%s%d", ChunkSourcePrefix, index)
}

// ChunkIndex parses the index out of a doc_<n> id
func ChunkIndex(id string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, DocumentIDPrefix))
	if err != nil || !strings.HasPrefix(id, DocumentIDPrefix) {
		return 0, false
	}
	return n, true
}

// SortResults orders hits by ascending distance, then by chunk index so that
// doc_2 precedes doc_10. Ids outside the doc_<n> scheme sort after, by string.
func SortResults(results []QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		a, okA := ChunkIndex(results[i].ID)
		b, okB := ChunkIndex(results[j].ID)
		switch {
		case okA && okB:
			return a < b
		case okA != okB:
			return okA
		}
		return results[i].ID < results[j].ID
	})
}
