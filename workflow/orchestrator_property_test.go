package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// TestProperty_SelfLoopAlwaysTerminatesWithinMaxIterations checks the
// invariant behind the orchestrator's iteration-limit check (§5/§8):
// a workflow whose only edge points back at its own start node never runs
// more than maxIterations times, and always fails with the iteration-limit
// error rather than looping forever or panicking.
func TestProperty_SelfLoopAlwaysTerminatesWithinMaxIterations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("self-looping workflows fail with the iteration-limit error, never exceeding maxIterations node executions", prop.ForAll(
		func(maxIterations int) bool {
			wf := &Workflow{
				ID:            "spin",
				StartNode:     "n",
				EndNode:       "end",
				MaxIterations: maxIterations,
				Nodes:         []Node{{ID: "n", Type: "echo"}, {ID: "end", Type: "echo"}},
				Edges:         []Edge{{ID: "e1", From: "n", To: "n"}},
			}
			orch, _ := newTestOrchestrator(&fakeWorkflowStore{}, passthroughExecutor("echo"))

			journal := NewMemoryJournal()
			orch.journal = journal

			exec, err := orch.Execute(context.Background(), wf, nil, nil, "", nil)
			if err == nil {
				t.Logf("expected iteration-limit error, got nil")
				return false
			}
			if exec == nil || exec.Status != StatusFailed {
				t.Logf("expected execution to be marked failed, got %+v", exec)
				return false
			}

			nodeExecs, histErr := journal.ListNodeExecutions(context.Background(), exec.ID)
			if histErr != nil {
				t.Logf("list node executions: %v", histErr)
				return false
			}
			if len(nodeExecs) > maxIterations {
				t.Logf("node executions %d exceeded maxIterations %d", len(nodeExecs), maxIterations)
				return false
			}
			return true
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// TestProperty_LinearChainVisitsEveryNodeExactlyOnce checks that a workflow
// with no cycles (a straight chain of N echo nodes) always executes every
// node exactly once, in order, matching the traversal algorithm's terminal
// check (current == EndNode breaks the loop as soon as it's reached).
func TestProperty_LinearChainVisitsEveryNodeExactlyOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("linear chains complete with exactly one node-execution per node, in order", prop.ForAll(
		func(length int) bool {
			nodes := make([]Node, length)
			edges := make([]Edge, 0, length-1)
			for i := 0; i < length; i++ {
				nodes[i] = Node{ID: fmt.Sprintf("n%d", i), Type: "echo"}
				if i > 0 {
					edges = append(edges, Edge{ID: fmt.Sprintf("e%d", i), From: fmt.Sprintf("n%d", i-1), To: fmt.Sprintf("n%d", i)})
				}
			}
			wf := &Workflow{
				ID:        "chain",
				StartNode: "n0",
				EndNode:   fmt.Sprintf("n%d", length-1),
				Nodes:     nodes,
				Edges:     edges,
			}

			reg := NewExecutorRegistry(&fakeWorkflowStore{}, zap.NewNop())
			reg.RegisterBuiltin(passthroughExecutor("echo"))
			journal := NewMemoryJournal()
			orch := NewOrchestrator(&fakeWorkflowStore{}, reg, journal, nil, zap.NewNop())

			exec, err := orch.Execute(context.Background(), wf, map[string]any{"v": length}, nil, "", nil)
			if err != nil {
				t.Logf("execute failed: %v", err)
				return false
			}

			nodeExecs, histErr := journal.ListNodeExecutions(context.Background(), exec.ID)
			if histErr != nil {
				t.Logf("list node executions: %v", histErr)
				return false
			}
			if len(nodeExecs) != length {
				t.Logf("expected %d node executions, got %d", length, len(nodeExecs))
				return false
			}
			for i, ne := range nodeExecs {
				if ne.NodeID != fmt.Sprintf("n%d", i) {
					t.Logf("expected node %d to be n%d, got %s", i, i, ne.NodeID)
					return false
				}
				if ne.Status != StatusCompleted {
					t.Logf("expected node %s to be completed, got %s", ne.NodeID, ne.Status)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 15),
	))

	properties.TestingRun(t)
}
