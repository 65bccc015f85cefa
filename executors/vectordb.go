package executors

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// VectorDocument is the unit stored and returned by VectorStore, named
// and shaped after the teacher's rag.Document/rag.VectorSearchResult.
type VectorDocument struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float64      `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type VectorSearchResult struct {
	Document VectorDocument `json:"document"`
	Score    float64        `json:"score"`
}

// VectorStore is the capability a VectorDBExecutor needs; a Qdrant- or
// Milvus-backed implementation can be swapped in without touching the
// executor itself.
type VectorStore interface {
	Upsert(ctx context.Context, docs []VectorDocument) error
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error)
	Delete(ctx context.Context, ids []string) error
}

// InMemoryVectorStore is the default VectorStore: a cosine-similarity
// linear scan, grounded on the teacher's InMemoryVectorStore (used there
// for tests and small-scale deployments).
type InMemoryVectorStore struct {
	mu   sync.RWMutex
	docs map[string]VectorDocument
}

func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{docs: make(map[string]VectorDocument)}
}

func (s *InMemoryVectorStore) Upsert(_ context.Context, docs []VectorDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if len(d.Embedding) == 0 {
			return fmt.Errorf("document %q has no embedding", d.ID)
		}
		s.docs[d.ID] = d
	}
	return nil
}

func (s *InMemoryVectorStore) Search(_ context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]VectorSearchResult, 0, len(s.docs))
	for _, d := range s.docs {
		results = append(results, VectorSearchResult{Document: d, Score: cosineSimilarity(queryEmbedding, d.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *InMemoryVectorStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// VectorDBExecutor performs one of "upsert", "search", or "delete"
// against an injected VectorStore. Config:
//
//	operation ("upsert"|"search"|"delete", required)
//	documents ([]any of {id,content,embedding,metadata}, for "upsert")
//	embedding ([]any of float64, for "search")
//	topK      (number, for "search", default 5)
//	ids       ([]any of string, for "delete")
type VectorDBExecutor struct {
	store VectorStore
}

func NewVectorDBExecutor(store VectorStore) *VectorDBExecutor {
	if store == nil {
		store = NewInMemoryVectorStore()
	}
	return &VectorDBExecutor{store: store}
}

func (e *VectorDBExecutor) Type() string { return "vectordb" }

func (e *VectorDBExecutor) Run(ctx context.Context, parsedConfig, _ map[string]any) (any, error) {
	op, _ := parsedConfig["operation"].(string)
	switch op {
	case "upsert":
		docs, err := decodeDocuments(parsedConfig["documents"])
		if err != nil {
			return nil, fmt.Errorf("vectordb executor: %w", err)
		}
		if err := e.store.Upsert(ctx, docs); err != nil {
			return nil, fmt.Errorf("vectordb executor: upsert: %w", err)
		}
		return map[string]any{"upserted": len(docs)}, nil

	case "search":
		embedding, err := decodeFloats(parsedConfig["embedding"])
		if err != nil {
			return nil, fmt.Errorf("vectordb executor: %w", err)
		}
		topK := 5
		if k, ok := parsedConfig["topK"].(float64); ok && k > 0 {
			topK = int(k)
		}
		results, err := e.store.Search(ctx, embedding, topK)
		if err != nil {
			return nil, fmt.Errorf("vectordb executor: search: %w", err)
		}
		return map[string]any{"results": results}, nil

	case "delete":
		ids, _ := parsedConfig["ids"].([]any)
		strIDs := make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok {
				strIDs = append(strIDs, s)
			}
		}
		if err := e.store.Delete(ctx, strIDs); err != nil {
			return nil, fmt.Errorf("vectordb executor: delete: %w", err)
		}
		return map[string]any{"deleted": len(strIDs)}, nil

	default:
		return nil, fmt.Errorf("vectordb executor: unknown operation %q", op)
	}
}

func decodeDocuments(raw any) ([]VectorDocument, error) {
	items, _ := raw.([]any)
	docs := make([]VectorDocument, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("document entries must be objects")
		}
		id, _ := m["id"].(string)
		content, _ := m["content"].(string)
		embedding, err := decodeFloats(m["embedding"])
		if err != nil {
			return nil, err
		}
		metadata, _ := m["metadata"].(map[string]any)
		docs = append(docs, VectorDocument{ID: id, Content: content, Embedding: embedding, Metadata: metadata})
	}
	return docs, nil
}

func decodeFloats(raw any) ([]float64, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a numeric array")
	}
	out := make([]float64, 0, len(items))
	for _, v := range items {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected a numeric array")
		}
		out = append(out, f)
	}
	return out, nil
}
