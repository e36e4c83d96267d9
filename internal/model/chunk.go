package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Chunk is an overlapping word-window fragment of a Document, the unit
// of semantic indexing. Chunks are immutable once written and are
// replaced as a batch when their page is re-ingested.
type Chunk struct {
	ID        string    `json:"id"`
	OwnerID   uint      `json:"owner_id"`
	URL       string    `json:"url"`
	Ordinal   int       `json:"ordinal"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// RetrievedChunk is an ephemeral semantic search result.
type RetrievedChunk struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// ChunkID derives the stable point id for a chunk. Re-ingesting the
// same page yields the same ids for unchanged ordinals, which makes
// vector upserts idempotent.
func ChunkID(ownerID uint, url string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%d|%s|%d", ownerID, url, ordinal))).String()
}
