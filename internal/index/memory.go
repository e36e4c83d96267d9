package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"webrecall/internal/model"
)

// Memory is a brute-force cosine vector index for single-process
// deployments and tests. It honors the same replace-on-reingest and
// owner scoping contract as the qdrant backend.
type Memory struct {
	mu     sync.RWMutex
	chunks map[string]model.Chunk
}

func NewMemory() *Memory {
	return &Memory{chunks: make(map[string]model.Chunk)}
}

func (m *Memory) PutBatch(_ context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ownerID, url := chunks[0].OwnerID, chunks[0].URL

	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		fresh[c.ID] = true
	}
	for id, c := range m.chunks {
		if c.OwnerID == ownerID && c.URL == url && !fresh[id] {
			delete(m.chunks, id)
		}
	}
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *Memory) Query(_ context.Context, ownerID uint, url string, vector []float32, topK int) ([]model.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 3
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []model.RetrievedChunk
	for _, c := range m.chunks {
		if c.OwnerID != ownerID || c.URL != url {
			continue
		}
		results = append(results, model.RetrievedChunk{
			Text:  c.Text,
			Score: cosine(vector, c.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *Memory) DeleteByURL(_ context.Context, ownerID uint, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.OwnerID == ownerID && c.URL == url {
			delete(m.chunks, id)
		}
	}
	return nil
}

// Len reports the number of stored chunks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
