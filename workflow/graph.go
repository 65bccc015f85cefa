package workflow

import (
	"time"

	"github.com/BaSui01/agentflow/workflow/dsl"
)

// Workflow is the static program: a directed graph of nodes joined by
// static or dynamic edges, with a designated start and end node and an
// initial state mapping.
type Workflow struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	ParameterSchema map[string]any `json:"parameterSchema,omitempty" yaml:"parameterSchema,omitempty"`
	Nodes           []Node         `json:"nodes" yaml:"nodes"`
	Edges           []Edge         `json:"edges" yaml:"edges"`
	StartNode       string         `json:"startNode" yaml:"startNode"`
	EndNode         string         `json:"endNode" yaml:"endNode"`
	State           map[string]any `json:"state,omitempty" yaml:"state,omitempty"`
	MaxIterations   int            `json:"maxIterations" yaml:"maxIterations"`
	DefaultConfigID string         `json:"defaultConfigId,omitempty" yaml:"defaultConfigId,omitempty"`
	CreatedAt       time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

// DefaultMaxIterations is used when a workflow is constructed without an
// explicit MaxIterations value.
const DefaultMaxIterations = 100

// StreamingPolicy controls whether a node emits stream events and whether
// node_complete is sent by default.
type StreamingPolicy struct {
	Enabled        bool  `json:"enabled" yaml:"enabled"`
	SendOnComplete *bool `json:"sendOnComplete,omitempty" yaml:"sendOnComplete,omitempty"`
}

// sendsOnComplete reports whether node_complete should be emitted; absent
// (nil) defaults to true per spec ("not explicitly false").
func (p *StreamingPolicy) sendsOnComplete() bool {
	if p == nil || p.SendOnComplete == nil {
		return true
	}
	return *p.SendOnComplete
}

// StateAssignment is one {key, rule} pair evaluated after a node completes.
type StateAssignment struct {
	Key  string   `json:"key" yaml:"key"`
	Rule dsl.Rule `json:"rule" yaml:"rule"`
}

// Node is a processing step: a type string naming an executor, a config
// template tree, and optional post-completion state assignments.
type Node struct {
	ID        string            `json:"id" yaml:"id"`
	Type      string            `json:"type" yaml:"type"`
	Config    map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
	SetState  []StateAssignment `json:"setState,omitempty" yaml:"setState,omitempty"`
	Streaming *StreamingPolicy  `json:"streaming,omitempty" yaml:"streaming,omitempty"`
}

// workflowExecutorType is the reserved node type handled by the
// orchestrator itself (sub-workflow recursion) rather than the registry.
const workflowExecutorType = "workflow_executor"

// EdgeCondition is one entry of a dynamic edge's `conditions` list.
type EdgeCondition struct {
	Condition string `json:"condition" yaml:"condition"`
	Node      string `json:"node" yaml:"node"`
}

// Edge is a tagged variant distinguished by which of To, Rule, Conditions
// is populated: To makes it static; Rule or Conditions makes it dynamic.
type Edge struct {
	ID         string          `json:"id" yaml:"id"`
	From       string          `json:"from" yaml:"from"`
	To         string          `json:"to,omitempty" yaml:"to,omitempty"`
	Rule       dsl.Rule        `json:"rule,omitempty" yaml:"rule,omitempty"`
	Conditions []EdgeCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// IsStatic reports whether the edge has a fixed destination.
func (e *Edge) IsStatic() bool {
	return e.To != ""
}

// IsDynamic reports whether the edge must be evaluated against the
// execution context to determine its destination.
func (e *Edge) IsDynamic() bool {
	return !e.IsStatic()
}

// resolveDynamic evaluates a dynamic edge's rule or conditions list against
// ctx and returns the chosen next node id.
func (e *Edge) resolveDynamic(ctx map[string]any) (string, error) {
	if len(e.Rule) > 0 {
		v, err := e.Rule.Run(ctx)
		if err != nil {
			return "", err
		}
		s, ok := v.(string)
		if !ok {
			return "", &nonStringEdgeResultError{edgeID: e.ID}
		}
		return s, nil
	}

	for _, c := range e.Conditions {
		v, err := dsl.Eval(c.Condition, ctx)
		if err != nil {
			return "", err
		}
		if truthy(v) {
			return c.Node, nil
		}
	}
	return "", &noConditionMatchedError{edgeID: e.ID}
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}

type nonStringEdgeResultError struct{ edgeID string }

func (e *nonStringEdgeResultError) Error() string {
	return "dynamic edge '" + e.edgeID + "' did not return a string node id"
}

type noConditionMatchedError struct{ edgeID string }

func (e *noConditionMatchedError) Error() string {
	return "dynamic edge '" + e.edgeID + "' has no matching condition"
}
