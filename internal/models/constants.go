package models

const (
	DefaultChunkSize         = 512
	DefaultChunkOverlap      = 128
	DefaultTopK              = 5
	DefaultDistanceThreshold = 0.5

	DocumentIDPrefix  = "doc_"
	ChunkSourcePrefix = "chunk_"
	SourceMetadataKey = "source"

	DefaultCollectionName = "documents"
	DefaultPromptKey      = "file_q&a_chatbot_system_prompt"

	ContentBeginMarker = "<<<BEGIN CONTENT>>>"
	ContentEndMarker   = "<<<END CONTENT>>>"
)

// separators tried in order by the chunker: paragraph, line, sentence, word, hard cut
var ChunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}
