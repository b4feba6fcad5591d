package model

import "fmt"

// Document is one anonymized corpus entry ready for chunking. It is built
// once from a dataset entry and not mutated afterwards.
type Document struct {
	ArticleID string         `json:"article_id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
}

// Chunk is one bounded slice of a Document's text. ChunkIndex is dense from
// zero within an article; Metadata is a copy of the parent Document's map
// plus the chunk_index key.
type Chunk struct {
	ArticleID  string         `json:"article_id"`
	ChunkIndex int            `json:"chunk_index"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
}

// VectorID returns the deterministic vector store id for this chunk.
// Re-ingesting the same chunk always overwrites the same record.
func (c Chunk) VectorID() string {
	return fmt.Sprintf("article_%s_chunk_%d", c.ArticleID, c.ChunkIndex)
}

// QueryResult is one similarity match, already unpacked from the store's
// metadata. Ephemeral, produced per query.
type QueryResult struct {
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata"`
	ArticleID  string         `json:"article_id"`
	ChunkIndex int            `json:"chunk_index"`
}
