package workflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Executor is the minimal contract a node's executor must satisfy. Run
// receives the expanded config and the node input (parameters, config,
// state, parent, and optionally a streaming context section) and returns
// the node's output.
type Executor interface {
	Type() string
	Run(ctx context.Context, parsedConfig, input map[string]any) (any, error)
}

// ConfigSchemaProvider is an optional capability: an executor may expose a
// JSON-Schema-shaped mapping used only for external validation.
type ConfigSchemaProvider interface {
	ConfigSchema() map[string]any
}

// StreamingExecutor is an optional capability: an executor that can
// deliver incremental output via onChunk instead of (or in addition to)
// returning a single value.
type StreamingExecutor interface {
	SupportsStreaming() bool
	RunStreaming(ctx context.Context, parsedConfig, input map[string]any, onChunk func(chunk any)) (any, error)
}

// CustomExecutorRecord describes a stored sub-workflow wrapped as an
// executor: resolving node.type to this record loads sourceWorkflowId and
// runs it as the node's body.
type CustomExecutorRecord struct {
	Type             string
	SourceWorkflowID string
	ConfigSchema     map[string]any
}

// WorkflowStore resolves a workflow id to its definition, used both for
// workflow_executor dispatch and for custom-executor resolution.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
}

// ErrExecutorNotFound is returned when no built-in or custom executor is
// registered for a node type.
type ErrExecutorNotFound struct{ Type string }

func (e *ErrExecutorNotFound) Error() string {
	return fmt.Sprintf("executor not found for node type: %s", e.Type)
}

// ExecutorRegistry resolves node.type to a runnable Executor: built-ins
// first, then custom executors backed by a stored sub-workflow. The
// reserved "workflow_executor" type is never resolved here; the
// orchestrator dispatches it directly.
type ExecutorRegistry struct {
	mu       sync.RWMutex
	builtins map[string]Executor
	records  map[string]CustomExecutorRecord
	cache    map[string]Executor
	store    WorkflowStore
	logger   *zap.Logger
	loadGrp  singleflight.Group
}

// NewExecutorRegistry creates a registry backed by store for resolving
// custom executors' source workflows.
func NewExecutorRegistry(store WorkflowStore, logger *zap.Logger) *ExecutorRegistry {
	return &ExecutorRegistry{
		builtins: make(map[string]Executor),
		records:  make(map[string]CustomExecutorRecord),
		cache:    make(map[string]Executor),
		store:    store,
		logger:   logger.With(zap.String("component", "executor_registry")),
	}
}

// RegisterBuiltin adds a built-in executor, keyed by its own Type().
func (r *ExecutorRegistry) RegisterBuiltin(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[e.Type()] = e
}

// RegisterCustom declares a custom executor backed by a stored workflow.
// The wrapper is built lazily on first Resolve and cached by type.
func (r *ExecutorRegistry) RegisterCustom(rec CustomExecutorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Type] = rec
	delete(r.cache, rec.Type)
}

// ClearCache evicts one cached custom-executor wrapper, or all of them
// when nodeType is empty.
func (r *ExecutorRegistry) ClearCache(nodeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nodeType == "" {
		r.cache = make(map[string]Executor)
		return
	}
	delete(r.cache, nodeType)
}

// Resolve maps a node type to its Executor: built-ins first, then cached
// custom-executor wrappers, lazily building and caching one from a
// registered CustomExecutorRecord on first use.
func (r *ExecutorRegistry) Resolve(ctx context.Context, nodeType string) (Executor, error) {
	r.mu.RLock()
	if e, ok := r.builtins[nodeType]; ok {
		r.mu.RUnlock()
		return e, nil
	}
	if e, ok := r.cache[nodeType]; ok {
		r.mu.RUnlock()
		return e, nil
	}
	rec, ok := r.records[nodeType]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrExecutorNotFound{Type: nodeType}
	}

	// Concurrent Resolve calls for the same not-yet-cached nodeType would
	// otherwise each load and wrap the source workflow independently;
	// singleflight collapses them into one load, and every caller shares
	// the same wrapper instance once it lands in cache.
	v, err, _ := r.loadGrp.Do(nodeType, func() (any, error) {
		if e, ok := r.cachedExecutor(nodeType); ok {
			return e, nil
		}
		wf, err := r.store.GetWorkflow(ctx, rec.SourceWorkflowID)
		if err != nil {
			return nil, fmt.Errorf("resolve custom executor %q: load source workflow %q: %w", nodeType, rec.SourceWorkflowID, err)
		}
		wrapper := &subWorkflowExecutor{
			nodeType: nodeType,
			workflow: wf,
			registry: r,
			store:    r.store,
			schema:   rec.ConfigSchema,
			logger:   r.logger,
		}
		r.mu.Lock()
		r.cache[nodeType] = wrapper
		r.mu.Unlock()
		return wrapper, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Executor), nil
}

func (r *ExecutorRegistry) cachedExecutor(nodeType string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[nodeType]
	return e, ok
}

// subWorkflowExecutor adapts a stored workflow into an Executor by running
// it through a fresh Orchestrator on every invocation. It holds no
// per-call state, so one cached instance is safe for concurrent use.
type subWorkflowExecutor struct {
	nodeType string
	workflow *Workflow
	registry *ExecutorRegistry
	store    WorkflowStore
	schema   map[string]any
	logger   *zap.Logger
}

func (s *subWorkflowExecutor) Type() string { return s.nodeType }

func (s *subWorkflowExecutor) ConfigSchema() map[string]any { return s.schema }

func (s *subWorkflowExecutor) Run(ctx context.Context, parsedConfig, input map[string]any) (any, error) {
	parameters, _ := input["parameters"].(map[string]any)
	config, _ := input["config"].(map[string]any)

	orch := NewOrchestrator(s.store, s.registry, NewMemoryJournal(), nil, s.logger)
	result, err := orch.Execute(ctx, s.workflow, parameters, config, "", nil)
	if err != nil {
		return nil, fmt.Errorf("custom executor %q: %w", s.nodeType, err)
	}
	return result.Result, nil
}
