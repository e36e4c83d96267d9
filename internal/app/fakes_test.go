package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"webrecall/internal/fetcher"
	"webrecall/internal/model"
)

// In-process doubles for the slow or remote dependencies. The index
// doubles live in internal/index (bleve in-memory, Memory vector
// store) so these cover only fetching, embedding, generation, and the
// chat-log plumbing.

type fakeFetcher struct {
	pages map[string]fetcher.Page
	err   error
}

func (f *fakeFetcher) FetchAndClean(_ context.Context, url string) (*fetcher.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[url]
	if !ok {
		return nil, errors.New("no such page")
	}
	return &page, nil
}

// fakeEmbedder embeds each text as a 3-dim vector derived from its
// word count, so distinct chunks get distinct but stable vectors.
type fakeEmbedder struct {
	err      error
	queryErr error
	calls    int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		n := float32(len(strings.Fields(t)))
		out[i] = []float32{1, n, n * n}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	n := float32(len(strings.Fields(text)))
	return []float32{1, n, n * n}, nil
}

type fakeGenerator struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (f *fakeGenerator) Complete(_ context.Context, system, user string, _ int, _ float32) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakePublisher struct {
	published []model.ChatLog
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, entry model.ChatLog) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, entry)
	return nil
}

type fakeChatLogStore struct {
	logs  []model.ChatLog
	calls int
}

func (f *fakeChatLogStore) ListByUserAndURL(userID uint, url string, limit int) ([]model.ChatLog, error) {
	f.calls++
	var out []model.ChatLog
	for _, entry := range f.logs {
		if entry.UserID == userID && entry.URL == url {
			out = append(out, entry)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeHistoryCache struct {
	entries map[string][]model.ChatLog
	dirty   map[string]bool
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		entries: make(map[string][]model.ChatLog),
		dirty:   make(map[string]bool),
	}
}

func (f *fakeHistoryCache) key(userID uint, url string) string {
	return fmt.Sprintf("%d#%s", userID, url)
}

func (f *fakeHistoryCache) Get(_ context.Context, userID uint, url string) ([]model.ChatLog, bool, error) {
	entries, ok := f.entries[f.key(userID, url)]
	return entries, ok, nil
}

func (f *fakeHistoryCache) Set(_ context.Context, userID uint, url string, entries []model.ChatLog) error {
	f.entries[f.key(userID, url)] = entries
	f.dirty[f.key(userID, url)] = false
	return nil
}

func (f *fakeHistoryCache) Delete(_ context.Context, userID uint, url string) error {
	delete(f.entries, f.key(userID, url))
	return nil
}

func (f *fakeHistoryCache) MarkDirty(_ context.Context, userID uint, url string) error {
	f.dirty[f.key(userID, url)] = true
	return nil
}

func (f *fakeHistoryCache) IsDirty(_ context.Context, userID uint, url string) (bool, error) {
	return f.dirty[f.key(userID, url)], nil
}

// failingVectorIndex errors on every call, for exercising the
// degradation paths.
type failingVectorIndex struct{}

func (failingVectorIndex) PutBatch(context.Context, []model.Chunk) error { return errors.New("down") }

func (failingVectorIndex) Query(context.Context, uint, string, []float32, int) ([]model.RetrievedChunk, error) {
	return nil, errors.New("down")
}

func (failingVectorIndex) DeleteByURL(context.Context, uint, string) error {
	return errors.New("down")
}
