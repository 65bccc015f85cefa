package executors

import (
	"context"
	"fmt"
)

// EmbeddingProvider mirrors the teacher's embedding.Provider shape
// (EmbedDocuments/EmbedQuery) at the narrow slice this executor needs.
type EmbeddingProvider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbeddingExecutor turns a list of input strings into their vector
// embeddings. Config:
//
//	texts ([]any of string, required)
//
// Output: {"embeddings": [][]float64, "dimensions": int}.
type EmbeddingExecutor struct {
	provider EmbeddingProvider
}

func NewEmbeddingExecutor(provider EmbeddingProvider) *EmbeddingExecutor {
	return &EmbeddingExecutor{provider: provider}
}

func (e *EmbeddingExecutor) Type() string { return "embedding" }

func (e *EmbeddingExecutor) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"texts"},
		"properties": map[string]any{
			"texts": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
}

func (e *EmbeddingExecutor) Run(ctx context.Context, parsedConfig, _ map[string]any) (any, error) {
	raw, _ := parsedConfig["texts"].([]any)
	if len(raw) == 0 {
		return nil, fmt.Errorf("embedding executor requires a non-empty 'texts' array")
	}
	texts := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("embedding executor: 'texts' entries must be strings")
		}
		texts = append(texts, s)
	}

	if e.provider == nil {
		return map[string]any{"embeddings": [][]float64{}, "dimensions": 0}, nil
	}

	embeddings, err := e.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding executor: %w", err)
	}

	dims := 0
	if len(embeddings) > 0 {
		dims = len(embeddings[0])
	}
	return map[string]any{"embeddings": embeddings, "dimensions": dims}, nil
}
