package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformExecutorReturnsOutputKey(t *testing.T) {
	e := NewTransformExecutor()
	out, err := e.Run(context.Background(), map[string]any{"output": map[string]any{"greeting": "hi"}, "unrelated": 1}, nil)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hi"}, out)
}

func TestTransformExecutorReturnsWholeConfigWithoutOutputKey(t *testing.T) {
	e := NewTransformExecutor()
	cfg := map[string]any{"a": 1, "b": 2}
	out, err := e.Run(context.Background(), cfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, cfg, out)
}
