package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorDBExecutorUpsertAndSearch(t *testing.T) {
	e := NewVectorDBExecutor(nil)
	ctx := context.Background()

	_, err := e.Run(ctx, map[string]any{
		"operation": "upsert",
		"documents": []any{
			map[string]any{"id": "a", "content": "cat", "embedding": []any{1.0, 0.0}},
			map[string]any{"id": "b", "content": "dog", "embedding": []any{0.0, 1.0}},
		},
	}, nil)
	require.NoError(t, err)

	out, err := e.Run(ctx, map[string]any{
		"operation": "search",
		"embedding": []any{1.0, 0.0},
		"topK":      float64(1),
	}, nil)
	require.NoError(t, err)

	result := out.(map[string]any)
	results := result["results"].([]VectorSearchResult)
	require.Len(t, results, 1)
	require.Equal(t, "a", results[0].Document.ID)
}

func TestVectorDBExecutorDelete(t *testing.T) {
	e := NewVectorDBExecutor(nil)
	ctx := context.Background()

	_, err := e.Run(ctx, map[string]any{
		"operation": "upsert",
		"documents": []any{map[string]any{"id": "a", "embedding": []any{1.0}}},
	}, nil)
	require.NoError(t, err)

	out, err := e.Run(ctx, map[string]any{"operation": "delete", "ids": []any{"a"}}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, out.(map[string]any)["deleted"])
}

func TestVectorDBExecutorUnknownOperation(t *testing.T) {
	e := NewVectorDBExecutor(nil)
	_, err := e.Run(context.Background(), map[string]any{"operation": "frobnicate"}, nil)
	require.Error(t, err)
}
