package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentflow/types"
	"github.com/BaSui01/agentflow/workflow/dsl"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var orchestratorTracer = otel.Tracer("agentflow/workflow")

// Orchestrator drives executions from startNode to endNode. It holds only
// its collaborators and no per-execution state, so the server builds one
// value and uses it for every execution; sub-workflows get their own.
type Orchestrator struct {
	store    WorkflowStore
	registry *ExecutorRegistry
	journal  Journal
	metrics  OrchestratorMetrics
	logger   *zap.Logger
	breakers *CircuitBreakerRegistry
}

// OrchestratorOption configures optional Orchestrator behavior.
type OrchestratorOption func(*Orchestrator)

// WithCircuitBreakers attaches a shared CircuitBreakerRegistry: dispatch
// checks the breaker for the node's type before invoking its executor and
// records the outcome afterward, tripping open on a flapping node type
// instead of letting a cyclic workflow retry it forever.
func WithCircuitBreakers(reg *CircuitBreakerRegistry) OrchestratorOption {
	return func(o *Orchestrator) { o.breakers = reg }
}

// OrchestratorMetrics is the narrow slice of internal/metrics.Collector the
// orchestrator needs; kept as an interface here so the workflow package
// does not import internal/metrics (avoiding a dependency on the full
// Prometheus surface from the core engine).
type OrchestratorMetrics interface {
	ObserveIteration(workflowID string)
	ObserveNodeDuration(workflowID, nodeType string, d time.Duration)
	ObserveExecutorError(workflowID, nodeType string)
}

// NewOrchestrator constructs an Orchestrator. metrics may be nil.
func NewOrchestrator(store WorkflowStore, registry *ExecutorRegistry, journal Journal, metrics OrchestratorMetrics, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		store:    store,
		registry: registry,
		journal:  journal,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs wf to completion (or failure) and returns the final
// Execution record. sink may be nil, in which case no stream events are
// emitted. configID is recorded on the execution purely as a snapshot
// reference; config must already hold the resolved variables.
func (o *Orchestrator) Execute(ctx context.Context, wf *Workflow, parameters, config map[string]any, configID string, sink EventSink) (*Execution, error) {
	exec, err := o.journal.CreateExecution(ctx, wf.ID, parameters, config, configID)
	if err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	sc := &StreamingContext{Sink: sink, ExecutionID: exec.ID, WorkflowID: wf.ID, Depth: 0, Path: []string{}}

	if err := Validate(wf); err != nil {
		_ = o.journal.FailExecution(ctx, exec.ID, err.Error())
		_ = sc.emit(ctx, EventError, nil, map[string]any{"message": err.Error()})
		return o.finalRecord(ctx, exec.ID), err
	}

	if err := o.journal.MarkExecutionRunning(ctx, exec.ID); err != nil {
		return nil, fmt.Errorf("mark execution running: %w", err)
	}
	_ = sc.emit(ctx, EventWorkflowStart, nil, nil)

	result, err := o.run(ctx, wf, exec.ID, parameters, config, sc)
	if err != nil {
		_ = o.journal.FailExecution(ctx, exec.ID, err.Error())
		_ = sc.emit(ctx, EventError, nil, map[string]any{"message": err.Error()})
		return o.finalRecord(ctx, exec.ID), err
	}

	if err := o.journal.CompleteExecution(ctx, exec.ID, result); err != nil {
		return nil, fmt.Errorf("complete execution: %w", err)
	}
	_ = sc.emit(ctx, EventWorkflowComplete, map[string]any{"result": result}, nil)

	return o.finalRecord(ctx, exec.ID), nil
}

func (o *Orchestrator) finalRecord(ctx context.Context, executionID string) *Execution {
	rec, err := o.journal.GetExecution(ctx, executionID)
	if err != nil {
		return nil
	}
	return rec
}

// run performs steps 2-7 of the traversal algorithm: build context, index
// the graph, loop node-by-node to endNode, and return the final result
// value (parent[endNode]).
func (o *Orchestrator) run(ctx context.Context, wf *Workflow, executionID string, parameters, config map[string]any, sc *StreamingContext) (any, error) {
	nodeByID := make(map[string]*Node, len(wf.Nodes))
	for i := range wf.Nodes {
		nodeByID[wf.Nodes[i].ID] = &wf.Nodes[i]
	}
	edgeByFrom := make(map[string]*Edge, len(wf.Edges))
	for i := range wf.Edges {
		edgeByFrom[wf.Edges[i].From] = &wf.Edges[i]
	}

	state := map[string]any{}
	for k, v := range wf.State {
		state[k] = v
	}
	parent := map[string]any{}

	maxIterations := wf.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	current := wf.StartNode
	iterations := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, types.NewCancellationError(fmt.Sprintf("workflow execution cancelled before node '%s': %v", current, err))
		}
		if iterations >= maxIterations {
			return nil, types.NewIterationLimitError(fmt.Sprintf("Workflow execution exceeded maximum iterations (%d)", maxIterations))
		}
		iterations++
		if o.metrics != nil {
			o.metrics.ObserveIteration(wf.ID)
		}

		node, ok := nodeByID[current]
		if !ok {
			return nil, types.NewGraphNavigationError("node not found during execution")
		}

		output, err := o.executeNode(ctx, wf, node, executionID, parameters, config, state, parent, sc)
		if err != nil {
			return nil, err
		}
		parent[node.ID] = output

		if current == wf.EndNode {
			break
		}

		edge, ok := edgeByFrom[current]
		if !ok {
			return nil, types.NewGraphNavigationError(fmt.Sprintf("no outgoing edge found from '%s'", current))
		}

		next, err := o.resolveEdge(edge, parameters, config, state, parent)
		if err != nil {
			return nil, types.NewGraphNavigationError(err.Error())
		}
		if _, ok := nodeByID[next]; !ok {
			return nil, types.NewGraphNavigationError(fmt.Sprintf("dynamic edge '%s' returned invalid node ID '%s'", edge.ID, next))
		}
		current = next
	}

	return parent[wf.EndNode], nil
}

func (o *Orchestrator) resolveEdge(edge *Edge, parameters, config, state, parent map[string]any) (string, error) {
	if edge.IsStatic() {
		return edge.To, nil
	}
	ctxMap := map[string]any{
		"parameters": parameters,
		"config":     config,
		"state":      state,
		"parent":     parent,
	}
	return edge.resolveDynamic(ctxMap)
}

// executeNode implements steps 5d-5h: enter, build input, dispatch,
// setState, record. It returns the node's output or a wrapped error; in
// either case the caller is responsible for the surrounding execution's
// failure bookkeeping.
func (o *Orchestrator) executeNode(ctx context.Context, wf *Workflow, node *Node, executionID string, parameters, config, state, parent map[string]any, sc *StreamingContext) (any, error) {
	start := time.Now()

	depth, path := 0, ""
	if sc != nil {
		depth, path = sc.Depth, strings.Join(sc.Path, "/")
	}
	ctx, span := orchestratorTracer.Start(ctx, "workflow.node "+node.Type,
		trace.WithAttributes(
			attribute.String("workflow.id", wf.ID),
			attribute.String("workflow.node.id", node.ID),
			attribute.String("workflow.node.type", node.Type),
			attribute.Int("workflow.depth", depth),
			attribute.String("workflow.path", path),
		),
	)
	defer span.End()

	nodeExec, err := o.journal.CreateNodeExecution(ctx, executionID, node.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create node execution: %w", err)
	}
	meta := map[string]any{"nodeId": node.ID, "nodeType": node.Type}
	_ = sc.emit(ctx, EventNodeStart, nil, meta)

	if cancelErr := ctx.Err(); cancelErr != nil {
		err := types.NewCancellationError(fmt.Sprintf("node '%s' cancelled before dispatch: %v", node.ID, cancelErr))
		_ = o.journal.FailNodeExecution(ctx, nodeExec.ID, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	output, err := o.dispatch(ctx, wf, node, executionID, parameters, config, state, parent, sc)
	if err != nil {
		if cancelErr := ctx.Err(); cancelErr != nil {
			err = types.NewCancellationError(fmt.Sprintf("node '%s' cancelled: %v", node.ID, cancelErr))
		} else if o.metrics != nil {
			o.metrics.ObserveExecutorError(wf.ID, node.Type)
		}
		_ = o.journal.FailNodeExecution(ctx, nodeExec.ID, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := o.applySetState(node, parameters, config, state, parent, output); err != nil {
		_ = o.journal.FailNodeExecution(ctx, nodeExec.ID, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(node.SetState) > 0 {
		_ = sc.emit(ctx, EventStateUpdated, copyAny(state), meta)
	}

	if err := o.journal.CompleteNodeExecution(ctx, nodeExec.ID, output); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("complete node execution: %w", err)
	}

	if o.metrics != nil {
		o.metrics.ObserveNodeDuration(wf.ID, node.Type, time.Since(start))
	}

	if node.Streaming == nil || node.Streaming.sendsOnComplete() {
		completeMeta := map[string]any{"nodeId": node.ID, "nodeType": node.Type, "duration": time.Since(start).String()}
		_ = sc.emit(ctx, EventNodeComplete, output, completeMeta)
	}

	return output, nil
}

// dispatch resolves and invokes the node's behavior: either sub-workflow
// recursion for the reserved workflow_executor type, or a registry
// executor, honoring the node's streaming policy when the executor
// supports it.
func (o *Orchestrator) dispatch(ctx context.Context, wf *Workflow, node *Node, executionID string, parameters, config, state, parent map[string]any, sc *StreamingContext) (any, error) {
	ctxMap := map[string]any{
		"parameters": parameters,
		"config":     config,
		"state":      state,
		"parent":     parent,
	}
	expandedConfig, err := dsl.Expand(node.Config, ctxMap)
	if err != nil {
		return nil, types.NewTemplateError(fmt.Sprintf("node '%s': %v", node.ID, err))
	}
	parsedConfig, _ := expandedConfig.(map[string]any)
	if parsedConfig == nil {
		parsedConfig = map[string]any{}
	}

	if node.Type == workflowExecutorType {
		return o.dispatchSubWorkflow(ctx, node, parsedConfig, parameters, config, sc)
	}

	input := map[string]any{
		"parameters": parameters,
		"config":     config,
		"state":      state,
		"parent":     parent,
	}
	if sc != nil && sc.Sink != nil {
		input["context"] = map[string]any{"executionId": sc.ExecutionID, "depth": sc.Depth, "path": sc.Path}
	}

	exec, err := o.registry.Resolve(ctx, node.Type)
	if err != nil {
		return nil, types.NewExecutorError(err.Error())
	}

	var cb *circuitBreaker
	if o.breakers != nil {
		cb = o.breakers.getOrCreate(node.Type)
		if err := cb.allow(); err != nil {
			return nil, types.NewExecutorError(err.Error())
		}
	}

	streamer, canStream := exec.(StreamingExecutor)
	wantsStream := node.Streaming != nil && node.Streaming.Enabled && canStream && streamer.SupportsStreaming()
	if wantsStream {
		onChunk := func(chunk any) {
			_ = sc.emit(ctx, EventNodeChunk, chunk, map[string]any{"nodeId": node.ID, "nodeType": node.Type})
		}
		out, err := streamer.RunStreaming(ctx, parsedConfig, input, onChunk)
		if err != nil {
			if cb != nil {
				cb.recordFailure()
			}
			return nil, types.NewExecutorError(fmt.Sprintf("node '%s': %v", node.ID, err))
		}
		if cb != nil {
			cb.recordSuccess()
		}
		return out, nil
	}

	out, err := exec.Run(ctx, parsedConfig, input)
	if err != nil {
		if cb != nil {
			cb.recordFailure()
		}
		return nil, types.NewExecutorError(fmt.Sprintf("node '%s': %v", node.ID, err))
	}
	if cb != nil {
		cb.recordSuccess()
	}
	return out, nil
}

func (o *Orchestrator) dispatchSubWorkflow(ctx context.Context, node *Node, parsedConfig, parentParameters, inheritedConfig map[string]any, sc *StreamingContext) (any, error) {
	workflowID, _ := parsedConfig["workflow_id"].(string)
	if workflowID == "" {
		return nil, types.NewSubWorkflowError(fmt.Sprintf("node '%s': workflow_executor requires 'workflow_id'", node.ID))
	}
	subParameters, _ := parsedConfig["parameters"].(map[string]any)
	if subParameters == nil {
		return nil, types.NewSubWorkflowError(fmt.Sprintf("node '%s': workflow_executor requires 'parameters'", node.ID))
	}

	subWf, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, types.NewSubWorkflowError(fmt.Sprintf("Workflow execution failed for workflow_id '%s': %v", workflowID, err))
	}

	var subSink EventSink
	if sc != nil {
		subSink = sc.Sink
	}

	subOrch := NewOrchestrator(o.store, o.registry, o.journal, o.metrics, o.logger, WithCircuitBreakers(o.breakers))
	subExecResult, err := subOrch.executeNested(ctx, subWf, subParameters, inheritedConfig, sc, node.ID)
	if err != nil {
		return nil, types.NewSubWorkflowError(fmt.Sprintf("Workflow execution failed for workflow_id '%s': %v", workflowID, err))
	}
	_ = subSink
	return subExecResult.Result, nil
}

// executeNested runs a sub-workflow with a StreamingContext derived from
// the parent's (depth+1, path extended by nodeID, parentExecutionId set),
// instead of creating a fresh top-level one.
func (o *Orchestrator) executeNested(ctx context.Context, wf *Workflow, parameters, config map[string]any, parentSC *StreamingContext, nodeID string) (*Execution, error) {
	depth, path := 0, ""
	if parentSC != nil {
		depth, path = parentSC.Depth+1, strings.Join(append(append([]string{}, parentSC.Path...), nodeID), "/")
	}
	ctx, span := orchestratorTracer.Start(ctx, "workflow.subworkflow "+wf.ID,
		trace.WithAttributes(
			attribute.String("workflow.id", wf.ID),
			attribute.String("workflow.parent_node.id", nodeID),
			attribute.Int("workflow.depth", depth),
			attribute.String("workflow.path", path),
		),
	)
	defer span.End()

	exec, err := o.journal.CreateExecution(ctx, wf.ID, parameters, config, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create sub-execution: %w", err)
	}

	var sc *StreamingContext
	if parentSC != nil {
		sc = parentSC.child(exec.ID, wf.ID, nodeID)
	} else {
		sc = &StreamingContext{ExecutionID: exec.ID, WorkflowID: wf.ID}
	}

	if err := Validate(wf); err != nil {
		_ = o.journal.FailExecution(ctx, exec.ID, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return o.finalRecord(ctx, exec.ID), err
	}
	if err := o.journal.MarkExecutionRunning(ctx, exec.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("mark sub-execution running: %w", err)
	}
	_ = sc.emit(ctx, EventWorkflowStart, nil, nil)

	result, err := o.run(ctx, wf, exec.ID, parameters, config, sc)
	if err != nil {
		_ = o.journal.FailExecution(ctx, exec.ID, err.Error())
		_ = sc.emit(ctx, EventError, nil, map[string]any{"message": err.Error()})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return o.finalRecord(ctx, exec.ID), err
	}

	if err := o.journal.CompleteExecution(ctx, exec.ID, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("complete sub-execution: %w", err)
	}
	_ = sc.emit(ctx, EventWorkflowComplete, map[string]any{"result": result}, nil)

	return o.finalRecord(ctx, exec.ID), nil
}

// applySetState evaluates every {key, rule} pair against the current state
// plus output, stages the results, and only commits them to the live state
// map once every rule has succeeded — making setState atomic per node per
// the decided resolution of the source's open question.
func (o *Orchestrator) applySetState(node *Node, parameters, config, state, parent map[string]any, output any) error {
	if len(node.SetState) == 0 {
		return nil
	}

	staged := make(map[string]any, len(node.SetState))
	for _, assign := range node.SetState {
		ctxMap := map[string]any{
			"parameters": parameters,
			"config":     config,
			"state":      state,
			"parent":     parent,
			"output":     output,
		}
		val, err := assign.Rule.Run(ctxMap)
		if err != nil {
			return types.NewStateUpdateError(fmt.Sprintf("Failed to execute setState for key '%s': %v", assign.Key, err))
		}
		staged[assign.Key] = val
	}

	for k, v := range staged {
		state[k] = v
	}
	return nil
}

func copyAny(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
