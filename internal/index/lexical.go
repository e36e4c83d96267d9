// Package index holds the two retrieval stores: the lexical full-text
// index (bleve) and the vector index (qdrant, with an in-memory
// fallback). Every read path filters by owner; fuzziness never crosses
// that boundary.
package index

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"webrecall/internal/model"
)

const (
	titleBoost       = 2.0
	searchFuzziness  = 1
	searchPrefixLen  = 2
	edgeNgramMin     = 2.0
	edgeNgramMax     = 10.0
	pageTextAnalyzer = "page_text"
	edgeNgramFilter  = "edge_ngram_2_10"
	defaultListLimit = 100
)

// Lexical is the bleve-backed document store. Documents are keyed by
// (owner, url), so a re-ingest replaces the prior record in place.
type Lexical struct {
	idx bleve.Index
}

// OpenLexical opens the index at path, creating it with the page
// mapping when absent.
func OpenLexical(path string) (*Lexical, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		m, merr := buildPageMapping()
		if merr != nil {
			return nil, merr
		}
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index at %s failed: %w", path, err)
	}
	return &Lexical{idx: idx}, nil
}

// OpenLexicalInMemory builds an ephemeral index with the same mapping.
func OpenLexicalInMemory() (*Lexical, error) {
	m, err := buildPageMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("open in-memory lexical index failed: %w", err)
	}
	return &Lexical{idx: idx}, nil
}

func (l *Lexical) Close() error {
	return l.idx.Close()
}

// buildPageMapping analyzes title and content with front edge-ngrams
// (2..10, lowercased) for prefix-tolerant matching; owner_id and url
// stay unanalyzed so scoping and deletes are exact.
func buildPageMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomTokenFilter(edgeNgramFilter, map[string]interface{}{
		"type": edgengram.Name,
		"min":  edgeNgramMin,
		"max":  edgeNgramMax,
	}); err != nil {
		return nil, fmt.Errorf("register edge ngram filter failed: %w", err)
	}
	if err := m.AddCustomAnalyzer(pageTextAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, edgeNgramFilter},
	}); err != nil {
		return nil, fmt.Errorf("register page analyzer failed: %w", err)
	}

	text := bleve.NewTextFieldMapping()
	text.Analyzer = pageTextAnalyzer

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	page := bleve.NewDocumentMapping()
	page.AddFieldMappingsAt("title", text)
	page.AddFieldMappingsAt("content", text)
	page.AddFieldMappingsAt("owner_id", kw)
	page.AddFieldMappingsAt("url", kw)
	page.AddFieldMappingsAt("favicon", kw)
	page.AddFieldMappingsAt("created_at", bleve.NewDateTimeFieldMapping())

	m.DefaultMapping = page
	m.DefaultAnalyzer = standard.Name
	return m, nil
}

func docID(ownerID uint, url string) string {
	return strconv.FormatUint(uint64(ownerID), 10) + "::" + url
}

func ownerKey(ownerID uint) string {
	return strconv.FormatUint(uint64(ownerID), 10)
}

// Put upserts the whole-document record for (doc.OwnerID, doc.URL).
func (l *Lexical) Put(_ context.Context, doc model.Document) error {
	record := map[string]interface{}{
		"owner_id":   ownerKey(doc.OwnerID),
		"url":        doc.URL,
		"title":      doc.Title,
		"content":    doc.Content,
		"favicon":    doc.Favicon,
		"created_at": doc.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := l.idx.Index(docID(doc.OwnerID, doc.URL), record); err != nil {
		return fmt.Errorf("index page %s failed: %w", doc.URL, err)
	}
	return nil
}

// Search scores pages by the better of a boosted fuzzy title match and
// a fuzzy content match, both prefix-anchored, always conjoined with
// the owner clause. An empty query yields no hits.
func (l *Lexical) Search(_ context.Context, ownerID uint, q string, topK int) ([]model.SearchHit, error) {
	if q == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 10
	}

	owner := query.NewTermQuery(ownerKey(ownerID))
	owner.SetField("owner_id")

	title := query.NewMatchQuery(q)
	title.SetField("title")
	title.SetBoost(titleBoost)
	title.SetFuzziness(searchFuzziness)
	title.SetPrefix(searchPrefixLen)
	title.Analyzer = standard.Name

	content := query.NewMatchQuery(q)
	content.SetField("content")
	content.SetFuzziness(searchFuzziness)
	content.SetPrefix(searchPrefixLen)
	content.Analyzer = standard.Name

	either := query.NewDisjunctionQuery([]query.Query{title, content})
	either.SetMin(1)

	req := bleve.NewSearchRequestOptions(query.NewConjunctionQuery([]query.Query{owner, either}), topK, 0, false)
	req.Fields = []string{"url", "title", "favicon"}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField("content")
	req.Highlight.AddField("title")

	res, err := l.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := model.SearchHit{
			URL:     fieldString(h.Fields, "url"),
			Title:   fieldString(h.Fields, "title"),
			Favicon: fieldString(h.Fields, "favicon"),
			Score:   h.Score,
		}
		// One fragment per hit, content preferred over title.
		if frags := h.Fragments["content"]; len(frags) > 0 {
			hit.Snippet = frags[0]
		} else if frags := h.Fragments["title"]; len(frags) > 0 {
			hit.Snippet = frags[0]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Get returns the stored document for (ownerID, url), or nil when it
// does not exist.
func (l *Lexical) Get(_ context.Context, ownerID uint, url string) (*model.Document, error) {
	q := query.NewDocIDQuery([]string{docID(ownerID, url)})
	req := bleve.NewSearchRequestOptions(q, 1, 0, false)
	req.Fields = []string{"url", "title", "content", "favicon", "created_at"}

	res, err := l.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical get failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}

	h := res.Hits[0]
	doc := &model.Document{
		URL:     fieldString(h.Fields, "url"),
		OwnerID: ownerID,
		Title:   fieldString(h.Fields, "title"),
		Content: fieldString(h.Fields, "content"),
		Favicon: fieldString(h.Fields, "favicon"),
	}
	if ts, err := time.Parse(time.RFC3339, fieldString(h.Fields, "created_at")); err == nil {
		doc.CreatedAt = ts
	}
	return doc, nil
}

// Delete removes the single live document for (ownerID, url) and
// reports model.ErrNotFound when there is none.
func (l *Lexical) Delete(_ context.Context, ownerID uint, url string) error {
	id := docID(ownerID, url)
	existing, err := l.idx.Document(id)
	if err != nil {
		return fmt.Errorf("lexical lookup failed: %w", err)
	}
	if existing == nil {
		return model.ErrNotFound
	}
	if err := l.idx.Delete(id); err != nil {
		return fmt.Errorf("lexical delete failed: %w", err)
	}
	return nil
}

// List returns the owner's page summaries, newest first.
func (l *Lexical) List(_ context.Context, ownerID uint, limit int) ([]model.PageSummary, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	owner := query.NewTermQuery(ownerKey(ownerID))
	owner.SetField("owner_id")

	req := bleve.NewSearchRequestOptions(owner, limit, 0, false)
	req.Fields = []string{"url", "title", "favicon", "created_at"}
	req.SortBy([]string{"-created_at"})

	res, err := l.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical list failed: %w", err)
	}

	pages := make([]model.PageSummary, 0, len(res.Hits))
	for _, h := range res.Hits {
		p := model.PageSummary{
			URL:     fieldString(h.Fields, "url"),
			Title:   fieldString(h.Fields, "title"),
			Favicon: fieldString(h.Fields, "favicon"),
		}
		if ts, err := time.Parse(time.RFC3339, fieldString(h.Fields, "created_at")); err == nil {
			p.CreatedAt = ts
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
