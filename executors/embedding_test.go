package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEmbeddingProvider struct{}

func (fakeEmbeddingProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{float64(i), float64(i) + 1}
	}
	return out, nil
}

func TestEmbeddingExecutorCallsProvider(t *testing.T) {
	e := NewEmbeddingExecutor(fakeEmbeddingProvider{})
	out, err := e.Run(context.Background(), map[string]any{"texts": []any{"a", "b"}}, nil)
	require.NoError(t, err)
	result := out.(map[string]any)
	require.Equal(t, 2, result["dimensions"])
}

func TestEmbeddingExecutorWithoutProvider(t *testing.T) {
	e := NewEmbeddingExecutor(nil)
	out, err := e.Run(context.Background(), map[string]any{"texts": []any{"a"}}, nil)
	require.NoError(t, err)
	result := out.(map[string]any)
	require.Equal(t, 0, result["dimensions"])
}

func TestEmbeddingExecutorRequiresTexts(t *testing.T) {
	e := NewEmbeddingExecutor(nil)
	_, err := e.Run(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}
