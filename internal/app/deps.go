package app

import (
	"context"

	"webrecall/internal/fetcher"
	"webrecall/internal/model"
)

// Interfaces the services consume. Implementations are injected at
// construction time by bootstrap; nothing here holds process-wide
// state.

// LexicalIndex is the whole-document full-text store.
type LexicalIndex interface {
	Put(ctx context.Context, doc model.Document) error
	Search(ctx context.Context, ownerID uint, query string, topK int) ([]model.SearchHit, error)
	Get(ctx context.Context, ownerID uint, url string) (*model.Document, error)
	Delete(ctx context.Context, ownerID uint, url string) error
	List(ctx context.Context, ownerID uint, limit int) ([]model.PageSummary, error)
}

// VectorIndex is the per-chunk embedding store.
type VectorIndex interface {
	PutBatch(ctx context.Context, chunks []model.Chunk) error
	Query(ctx context.Context, ownerID uint, url string, vector []float32, topK int) ([]model.RetrievedChunk, error)
	DeleteByURL(ctx context.Context, ownerID uint, url string) error
}

// Embedder maps texts to fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is the opaque text-completion service.
type Generator interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// PageFetcher downloads and cleans a web page.
type PageFetcher interface {
	FetchAndClean(ctx context.Context, url string) (*fetcher.Page, error)
}

// ChatLogPublisher enqueues chat logs for asynchronous persistence.
type ChatLogPublisher interface {
	Publish(ctx context.Context, entry model.ChatLog) error
}

// ChatLogStore reads persisted chat logs.
type ChatLogStore interface {
	ListByUserAndURL(userID uint, url string, limit int) ([]model.ChatLog, error)
}

// HistoryCache caches recent chat history per (user, url).
type HistoryCache interface {
	Get(ctx context.Context, userID uint, url string) ([]model.ChatLog, bool, error)
	Set(ctx context.Context, userID uint, url string, entries []model.ChatLog) error
	Delete(ctx context.Context, userID uint, url string) error
	MarkDirty(ctx context.Context, userID uint, url string) error
	IsDirty(ctx context.Context, userID uint, url string) (bool, error)
}
