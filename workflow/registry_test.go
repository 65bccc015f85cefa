package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExecutor struct {
	typ string
	run func(ctx context.Context, parsedConfig, input map[string]any) (any, error)
}

func (f *fakeExecutor) Type() string { return f.typ }

func (f *fakeExecutor) Run(ctx context.Context, parsedConfig, input map[string]any) (any, error) {
	return f.run(ctx, parsedConfig, input)
}

type fakeWorkflowStore struct {
	workflows map[string]*Workflow
}

func (s *fakeWorkflowStore) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	wf, ok := s.workflows[id]
	if !ok {
		return nil, assert.AnError
	}
	return wf, nil
}

func TestExecutorRegistryResolvesBuiltin(t *testing.T) {
	reg := NewExecutorRegistry(&fakeWorkflowStore{}, zap.NewNop())
	reg.RegisterBuiltin(&fakeExecutor{typ: "echo", run: func(_ context.Context, _, input map[string]any) (any, error) {
		return input, nil
	}})

	exec, err := reg.Resolve(context.Background(), "echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", exec.Type())
}

func TestExecutorRegistryUnknownType(t *testing.T) {
	reg := NewExecutorRegistry(&fakeWorkflowStore{}, zap.NewNop())
	_, err := reg.Resolve(context.Background(), "nope")
	require.Error(t, err)
	var target *ErrExecutorNotFound
	assert.ErrorAs(t, err, &target)
}

func TestExecutorRegistryResolvesCustomFromRecord(t *testing.T) {
	sub := &Workflow{
		ID:        "sub-1",
		StartNode: "s",
		EndNode:   "s",
		Nodes:     []Node{{ID: "s", Type: "echo"}},
	}
	store := &fakeWorkflowStore{workflows: map[string]*Workflow{"sub-1": sub}}
	reg := NewExecutorRegistry(store, zap.NewNop())
	reg.RegisterBuiltin(&fakeExecutor{typ: "echo", run: func(_ context.Context, _, input map[string]any) (any, error) {
		return "ok", nil
	}})
	reg.RegisterCustom(CustomExecutorRecord{Type: "custom_echo", SourceWorkflowID: "sub-1"})

	exec, err := reg.Resolve(context.Background(), "custom_echo")
	require.NoError(t, err)
	assert.Equal(t, "custom_echo", exec.Type())

	exec2, err := reg.Resolve(context.Background(), "custom_echo")
	require.NoError(t, err)
	assert.Same(t, exec, exec2)
}

// countingWorkflowStore wraps fakeWorkflowStore to count GetWorkflow calls,
// letting concurrency tests assert a load happened only once.
type countingWorkflowStore struct {
	*fakeWorkflowStore
	calls atomic.Int64
}

func (s *countingWorkflowStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	s.calls.Add(1)
	return s.fakeWorkflowStore.GetWorkflow(ctx, id)
}

func TestExecutorRegistryResolveConcurrentLoadsDeduplicated(t *testing.T) {
	sub := &Workflow{ID: "sub-1", StartNode: "s", EndNode: "s", Nodes: []Node{{ID: "s", Type: "echo"}}}
	store := &countingWorkflowStore{fakeWorkflowStore: &fakeWorkflowStore{workflows: map[string]*Workflow{"sub-1": sub}}}
	reg := NewExecutorRegistry(store, zap.NewNop())
	reg.RegisterCustom(CustomExecutorRecord{Type: "custom_echo", SourceWorkflowID: "sub-1"})

	const goroutines = 20
	var wg sync.WaitGroup
	wg.Add(goroutines)
	results := make([]Executor, goroutines)
	for i := 0; i < goroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			exec, err := reg.Resolve(context.Background(), "custom_echo")
			require.NoError(t, err)
			results[idx] = exec
		}(i)
	}
	wg.Wait()

	for _, exec := range results {
		assert.Same(t, results[0], exec)
	}
	assert.Equal(t, int64(1), store.calls.Load())
}

func TestExecutorRegistryClearCache(t *testing.T) {
	sub := &Workflow{ID: "sub-1", StartNode: "s", EndNode: "s", Nodes: []Node{{ID: "s", Type: "echo"}}}
	store := &fakeWorkflowStore{workflows: map[string]*Workflow{"sub-1": sub}}
	reg := NewExecutorRegistry(store, zap.NewNop())
	reg.RegisterCustom(CustomExecutorRecord{Type: "custom_echo", SourceWorkflowID: "sub-1"})

	exec1, err := reg.Resolve(context.Background(), "custom_echo")
	require.NoError(t, err)

	reg.ClearCache("custom_echo")

	exec2, err := reg.Resolve(context.Background(), "custom_echo")
	require.NoError(t, err)
	assert.NotSame(t, exec1, exec2)
}
