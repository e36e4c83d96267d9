package app

import (
	"context"
	"fmt"
	"strings"

	"webrecall/internal/model"
)

const defaultSearchTopK = 10

type SearchService struct {
	lexical LexicalIndex
	topK    int
}

func NewSearchService(lexical LexicalIndex, topK int) *SearchService {
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	return &SearchService{lexical: lexical, topK: topK}
}

// Search runs a fuzzy, title-boosted query over the caller's pages. A
// blank query is not an error, it just matches nothing.
func (s *SearchService) Search(ctx context.Context, ownerID uint, query string) ([]model.SearchHit, error) {
	if ownerID == 0 {
		return nil, model.ErrInvalidInput
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchHit{}, nil
	}

	hits, err := s.lexical.Search(ctx, ownerID, query, s.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: lexical index: %v", model.ErrUpstreamUnavailable, err)
	}
	if hits == nil {
		hits = []model.SearchHit{}
	}
	return hits, nil
}
