package executors

import "context"

// TransformExecutor is the workflow_executor-adjacent built-in for plain
// data shaping: node.Config is already expanded against the node's input
// by the orchestrator before Run is called, so this executor's only job
// is to pick the result apart the way a node author expects.
//
// If parsedConfig has an "output" key, that value alone is returned
// (letting a node author wrap unrelated config under other keys without
// them leaking into the node's output). Otherwise the whole expanded
// config is returned, which makes a bare passthrough node (no config at
// all beyond templates) work without any special-casing.
type TransformExecutor struct{}

func NewTransformExecutor() *TransformExecutor { return &TransformExecutor{} }

func (e *TransformExecutor) Type() string { return "transform" }

func (e *TransformExecutor) Run(_ context.Context, parsedConfig, _ map[string]any) (any, error) {
	if out, ok := parsedConfig["output"]; ok {
		return out, nil
	}
	return parsedConfig, nil
}
