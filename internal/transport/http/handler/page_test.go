package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"webrecall/internal/app"
	"webrecall/internal/fetcher"
	"webrecall/internal/index"
	"webrecall/internal/model"
	"webrecall/internal/transport/http/middleware"
	"webrecall/internal/transport/http/response"
)

type stubFetcher struct{}

func (stubFetcher) FetchAndClean(context.Context, string) (*fetcher.Page, error) {
	return &fetcher.Page{Title: "Stub", Content: "stub body text"}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type brokenVectorIndex struct{}

func (brokenVectorIndex) PutBatch(context.Context, []model.Chunk) error { return nil }

func (brokenVectorIndex) Query(context.Context, uint, string, []float32, int) ([]model.RetrievedChunk, error) {
	return nil, errors.New("down")
}

func (brokenVectorIndex) DeleteByURL(context.Context, uint, string) error {
	return errors.New("down")
}

func newPageRouter(t *testing.T, vec app.VectorIndex) (*gin.Engine, *index.Lexical) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	lex, err := index.OpenLexicalInMemory()
	if err != nil {
		t.Fatalf("open lexical index: %v", err)
	}
	t.Cleanup(func() { lex.Close() })

	svc := app.NewPageService(stubFetcher{}, lex, vec, stubEmbedder{}, time.Second, time.Second)
	h := NewPageHandler(svc)

	router := gin.New()
	authed := router.Group("/api/v1/pages", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uint(1))
	})
	authed.DELETE("", h.Delete)
	return router, lex
}

func TestPageHandler_DeleteChunkCleanupFailure(t *testing.T) {
	router, lex := newPageRouter(t, brokenVectorIndex{})

	if err := lex.Put(context.Background(), model.Document{
		URL: "https://example.com/doomed", OwnerID: 1, Title: "Doomed",
		Content: "body", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed lexical index: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/pages?url=https%3A%2F%2Fexample.com%2Fdoomed", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body response.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Code != response.CodeInternalServer {
		t.Errorf("code = %d", body.Code)
	}
	if !strings.Contains(body.Message, "chunks") || !strings.Contains(body.Message, "removed from search") {
		t.Errorf("message %q does not describe the half-deleted page", body.Message)
	}

	// the lexical entry really is gone, matching the message
	if doc, _ := lex.Get(context.Background(), 1, "https://example.com/doomed"); doc != nil {
		t.Error("lexical entry still present")
	}
}

func TestPageHandler_DeleteUnknownPage(t *testing.T) {
	router, _ := newPageRouter(t, index.NewMemory())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/pages?url=https%3A%2F%2Fexample.com%2Fmissing", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body response.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Code != response.CodePageNotFound {
		t.Errorf("code = %d, want %d", body.Code, response.CodePageNotFound)
	}
}
