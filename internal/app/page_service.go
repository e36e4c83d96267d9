package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"webrecall/internal/chunker"
	"webrecall/internal/model"
)

var ErrFetchFailed = errors.New("failed to fetch or parse page")

// IngestStatus reports how far an ingestion got. Partial means the
// page is lexically searchable but its semantic index is missing.
type IngestStatus string

const (
	IngestStatusIndexed IngestStatus = "indexed"
	IngestStatusPartial IngestStatus = "partial"
)

type IngestResult struct {
	URL        string       `json:"url"`
	Title      string       `json:"title"`
	ChunkCount int          `json:"chunk_count"`
	Status     IngestStatus `json:"status"`
	Warning    string       `json:"warning,omitempty"`
}

// PageService runs the ingestion pipeline and the deletion cascade
// over the two indices.
type PageService struct {
	fetcher      PageFetcher
	lexical      LexicalIndex
	vector       VectorIndex
	embedder     Embedder
	fetchTimeout time.Duration
	embedTimeout time.Duration
	chunkWindow  int
	chunkOverlap int
}

func NewPageService(
	f PageFetcher,
	lexical LexicalIndex,
	vector VectorIndex,
	embedder Embedder,
	fetchTimeout, embedTimeout time.Duration,
) *PageService {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	if embedTimeout <= 0 {
		embedTimeout = 30 * time.Second
	}
	return &PageService{
		fetcher:      f,
		lexical:      lexical,
		vector:       vector,
		embedder:     embedder,
		fetchTimeout: fetchTimeout,
		embedTimeout: embedTimeout,
		chunkWindow:  chunker.DefaultWindow,
		chunkOverlap: chunker.DefaultOverlap,
	}
}

// Ingest fetches the page, writes it to the lexical index, then
// chunks, embeds, and writes the vector index. The lexical write is
// committed before any semantic work starts, so a concurrent search
// never sees semantic content without its lexical counterpart. Chunk
// or embedding trouble degrades to a partial success, never a hard
// failure.
func (s *PageService) Ingest(ctx context.Context, ownerID uint, rawURL string) (*IngestResult, error) {
	if ownerID == 0 {
		return nil, model.ErrInvalidInput
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, model.ErrInvalidInput
	}
	if parsed, err := url.Parse(rawURL); err != nil || !parsed.IsAbs() {
		return nil, model.ErrInvalidInput
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	page, err := s.fetcher.FetchAndClean(fetchCtx, rawURL)
	if err != nil || page == nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	doc := model.Document{
		URL:       rawURL,
		OwnerID:   ownerID,
		Title:     page.Title,
		Content:   page.Content,
		Favicon:   page.Favicon,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.lexical.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: lexical index: %v", model.ErrUpstreamUnavailable, err)
	}

	result := &IngestResult{URL: rawURL, Title: doc.Title, Status: IngestStatusIndexed}

	texts, err := chunker.Split(doc.Content, s.chunkWindow, s.chunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		result.Status = IngestStatusPartial
		result.Warning = "page produced no indexable chunks; only lexical search is available for it"
		return result, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	embeddings, err := s.embedder.Embed(embedCtx, texts)
	if err != nil {
		result.Status = IngestStatusPartial
		result.Warning = "embedding failed; only lexical search is available for this page"
		return result, nil
	}

	chunks := make([]model.Chunk, len(texts))
	for i := range texts {
		chunks[i] = model.Chunk{
			ID:        model.ChunkID(ownerID, rawURL, i),
			OwnerID:   ownerID,
			URL:       rawURL,
			Ordinal:   i,
			Text:      texts[i],
			Embedding: embeddings[i],
		}
	}
	if err := s.vector.PutBatch(ctx, chunks); err != nil {
		result.Status = IngestStatusPartial
		result.Warning = "vector index write failed; only lexical search is available for this page"
		return result, nil
	}

	result.ChunkCount = len(chunks)
	return result, nil
}

// List returns the owner's pages, newest first.
func (s *PageService) List(ctx context.Context, ownerID uint) ([]model.PageSummary, error) {
	if ownerID == 0 {
		return nil, model.ErrInvalidInput
	}
	pages, err := s.lexical.List(ctx, ownerID, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: lexical index: %v", model.ErrUpstreamUnavailable, err)
	}
	return pages, nil
}

// Delete removes the page from both indices. The two deletes are not
// transactional: if the chunk cleanup fails after the lexical entry is
// gone, the mismatch is surfaced as ErrInconsistentState instead of
// being swallowed.
func (s *PageService) Delete(ctx context.Context, ownerID uint, rawURL string) error {
	if ownerID == 0 || strings.TrimSpace(rawURL) == "" {
		return model.ErrInvalidInput
	}

	if err := s.lexical.Delete(ctx, ownerID, rawURL); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: lexical index: %v", model.ErrUpstreamUnavailable, err)
	}

	if err := s.vector.DeleteByURL(ctx, ownerID, rawURL); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInconsistentState, err)
	}
	return nil
}
