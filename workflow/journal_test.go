package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournalExecutionLifecycle(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	exec, err := j.CreateExecution(ctx, "wf-1", map[string]any{"a": 1}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, exec.Status)

	require.NoError(t, j.MarkExecutionRunning(ctx, exec.ID))
	got, err := j.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)

	require.NoError(t, j.CompleteExecution(ctx, exec.ID, "result"))
	got, err = j.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "result", got.Result)
	assert.NotNil(t, got.CompletedAt)
}

func TestMemoryJournalFailExecution(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	exec, err := j.CreateExecution(ctx, "wf-1", nil, nil, "")
	require.NoError(t, err)

	require.NoError(t, j.FailExecution(ctx, exec.ID, "boom"))
	got, err := j.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestMemoryJournalGetExecutionNotFound(t *testing.T) {
	j := NewMemoryJournal()
	_, err := j.GetExecution(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestMemoryJournalNodeExecutionLifecycle(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	exec, err := j.CreateExecution(ctx, "wf-1", nil, nil, "")
	require.NoError(t, err)

	ne1, err := j.CreateNodeExecution(ctx, exec.ID, "node-a")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, ne1.Status)

	require.NoError(t, j.CompleteNodeExecution(ctx, ne1.ID, "output-a"))

	ne2, err := j.CreateNodeExecution(ctx, exec.ID, "node-a")
	require.NoError(t, err)
	require.NoError(t, j.FailNodeExecution(ctx, ne2.ID, "failed again"))

	all, err := j.ListNodeExecutions(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, StatusCompleted, all[0].Status)
	assert.Equal(t, "output-a", all[0].Output)
	assert.Equal(t, StatusFailed, all[1].Status)
	assert.Equal(t, "failed again", all[1].Error)
}
