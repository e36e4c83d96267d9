package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"webrecall/internal/index"
	"webrecall/internal/model"
)

const chatPageURL = "https://example.com/rust"

func newChatFixture(t *testing.T, gen *fakeGenerator, emb *fakeEmbedder) (*ChatService, *fakePublisher, *fakeChatLogStore, *fakeHistoryCache) {
	t.Helper()
	lex, err := index.OpenLexicalInMemory()
	if err != nil {
		t.Fatalf("open lexical index: %v", err)
	}
	t.Cleanup(func() { lex.Close() })

	vec := index.NewMemory()
	pub := &fakePublisher{}
	store := &fakeChatLogStore{}
	cache := newFakeHistoryCache()

	ctx := context.Background()
	doc := model.Document{
		URL:       chatPageURL,
		OwnerID:   1,
		Title:     "The Rust Book",
		Content:   "ownership borrowing lifetimes",
		CreatedAt: time.Now().UTC(),
	}
	if err := lex.Put(ctx, doc); err != nil {
		t.Fatalf("seed lexical index: %v", err)
	}
	chunks := []model.Chunk{
		{ID: model.ChunkID(1, chatPageURL, 0), OwnerID: 1, URL: chatPageURL, Ordinal: 0,
			Text: "Ownership is Rust's central memory model.", Embedding: []float32{1, 0, 0}},
		{ID: model.ChunkID(1, chatPageURL, 1), OwnerID: 1, URL: chatPageURL, Ordinal: 1,
			Text: "Borrowing lets code reference data without taking ownership.", Embedding: []float32{0, 1, 0}},
	}
	if err := vec.PutBatch(ctx, chunks); err != nil {
		t.Fatalf("seed vector index: %v", err)
	}

	svc := NewChatService(lex, vec, emb, gen, pub, store, cache, 256, 0.2, 5*time.Second)
	return svc, pub, store, cache
}

func TestChatService_AskHappyPath(t *testing.T) {
	gen := &fakeGenerator{answer: "Ownership is how Rust manages memory."}
	svc, pub, _, cache := newChatFixture(t, gen, &fakeEmbedder{})

	res, err := svc.Ask(context.Background(), AskInput{
		UserID:   1,
		URL:      chatPageURL,
		Question: "What is ownership?",
	})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if res.Answer != gen.answer {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.URL != chatPageURL || res.Title != "The Rust Book" {
		t.Errorf("result identifies page as (%q, %q)", res.URL, res.Title)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want exactly 1", gen.calls)
	}
	if !strings.Contains(gen.lastSystem, "Ownership is Rust's central memory model.") {
		t.Error("system prompt missing retrieved evidence")
	}
	if !strings.Contains(gen.lastSystem, "The Rust Book") {
		t.Error("system prompt missing page title")
	}
	if gen.lastUser != "What is ownership?" {
		t.Errorf("user prompt = %q", gen.lastUser)
	}

	if len(pub.published) != 2 {
		t.Fatalf("published %d chat logs, want 2", len(pub.published))
	}
	if pub.published[0].Role != "user" || pub.published[1].Role != "assistant" {
		t.Errorf("published roles %q, %q", pub.published[0].Role, pub.published[1].Role)
	}
	if dirty, _ := cache.IsDirty(context.Background(), 1, chatPageURL); !dirty {
		t.Error("history cache not marked dirty after a new exchange")
	}
}

func TestChatService_AskUnknownPage(t *testing.T) {
	svc, _, _, _ := newChatFixture(t, &fakeGenerator{answer: "x"}, &fakeEmbedder{})

	_, err := svc.Ask(context.Background(), AskInput{
		UserID:   1,
		URL:      "https://example.com/never-saved",
		Question: "anything?",
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestChatService_AskOtherOwnersPage(t *testing.T) {
	svc, _, _, _ := newChatFixture(t, &fakeGenerator{answer: "x"}, &fakeEmbedder{})

	_, err := svc.Ask(context.Background(), AskInput{
		UserID:   2,
		URL:      chatPageURL,
		Question: "anything?",
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestChatService_AskNoRelevantContent(t *testing.T) {
	lex, err := index.OpenLexicalInMemory()
	if err != nil {
		t.Fatalf("open lexical index: %v", err)
	}
	defer lex.Close()
	ctx := context.Background()
	if err := lex.Put(ctx, model.Document{URL: chatPageURL, OwnerID: 1, Title: "T", Content: "c", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// lexical entry exists but the vector store has nothing for it
	svc := NewChatService(lex, index.NewMemory(), &fakeEmbedder{}, &fakeGenerator{answer: "x"},
		&fakePublisher{}, &fakeChatLogStore{}, newFakeHistoryCache(), 256, 0.2, time.Second)

	_, err = svc.Ask(ctx, AskInput{UserID: 1, URL: chatPageURL, Question: "anything?"})
	if !errors.Is(err, model.ErrNoRelevantContent) {
		t.Fatalf("err = %v, want ErrNoRelevantContent", err)
	}
}

func TestChatService_AskEmbedFailure(t *testing.T) {
	svc, _, _, _ := newChatFixture(t, &fakeGenerator{answer: "x"}, &fakeEmbedder{queryErr: errors.New("down")})

	_, err := svc.Ask(context.Background(), AskInput{UserID: 1, URL: chatPageURL, Question: "q?"})
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestChatService_AskGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("502 from upstream")}
	svc, pub, _, _ := newChatFixture(t, gen, &fakeEmbedder{})

	_, err := svc.Ask(context.Background(), AskInput{UserID: 1, URL: chatPageURL, Question: "q?"})
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("err = %v, want ErrGenerationUnavailable", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published %d logs for a failed exchange", len(pub.published))
	}
}

func TestChatService_AskRejectsBadInput(t *testing.T) {
	svc, _, _, _ := newChatFixture(t, &fakeGenerator{answer: "x"}, &fakeEmbedder{})

	cases := []AskInput{
		{UserID: 0, URL: chatPageURL, Question: "q"},
		{UserID: 1, URL: "", Question: "q"},
		{UserID: 1, URL: chatPageURL, Question: "   "},
	}
	for _, input := range cases {
		if _, err := svc.Ask(context.Background(), input); !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("input %+v: err = %v, want ErrInvalidInput", input, err)
		}
	}
}

func TestChatService_HistoryFallsBackToStore(t *testing.T) {
	svc, _, store, cache := newChatFixture(t, &fakeGenerator{answer: "x"}, &fakeEmbedder{})
	store.logs = []model.ChatLog{
		{UserID: 1, URL: chatPageURL, Role: "user", Content: "q1"},
		{UserID: 1, URL: chatPageURL, Role: "assistant", Content: "a1"},
	}

	entries, err := svc.History(context.Background(), 1, chatPageURL, 50)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if store.calls != 1 {
		t.Errorf("store queried %d times, want 1", store.calls)
	}

	// second read is served from the refreshed cache
	if _, err := svc.History(context.Background(), 1, chatPageURL, 50); err != nil {
		t.Fatalf("second History failed: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("store queried %d times after cache refresh, want still 1", store.calls)
	}

	// a new exchange invalidates the cache
	if err := cache.MarkDirty(context.Background(), 1, chatPageURL); err != nil {
		t.Fatalf("mark dirty: %v", err)
	}
	if _, err := svc.History(context.Background(), 1, chatPageURL, 50); err != nil {
		t.Fatalf("third History failed: %v", err)
	}
	if store.calls != 2 {
		t.Errorf("store queried %d times after dirty mark, want 2", store.calls)
	}
}

func TestBuildEvidence_CapsLength(t *testing.T) {
	chunks := []model.RetrievedChunk{
		{Text: strings.Repeat("a", 4000), Score: 0.9},
		{Text: strings.Repeat("b", 4000), Score: 0.8},
		{Text: strings.Repeat("c", 4000), Score: 0.7},
	}
	evidence := buildEvidence(chunks)
	if n := len([]rune(evidence)); n > maxEvidenceRunes+len("\n---\n")*2 {
		t.Errorf("evidence length %d exceeds cap", n)
	}
	if !strings.Contains(evidence, "a") || !strings.Contains(evidence, "b") {
		t.Error("evidence dropped high-ranked chunks")
	}
	if strings.Contains(evidence, "c") {
		t.Error("evidence kept text past the cap")
	}
}
