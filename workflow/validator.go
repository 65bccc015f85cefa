package workflow

import (
	"fmt"

	"github.com/BaSui01/agentflow/types"
)

// Validate runs the structural pre-traversal checks on wf: unique node ids
// (checked while building the nodeIDs set), existing start/end nodes,
// existing edge endpoints, and at most one outgoing edge per node.
// It does not attempt reachability or cycle analysis; cycles are legal.
func Validate(wf *Workflow) error {
	nodeIDs := make(map[string]struct{}, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if _, dup := nodeIDs[n.ID]; dup {
			return types.NewValidationError(fmt.Sprintf("duplicate node id '%s'", n.ID))
		}
		nodeIDs[n.ID] = struct{}{}
	}

	if _, ok := nodeIDs[wf.StartNode]; !ok {
		return types.NewValidationError(fmt.Sprintf("Start node '%s' does not exist in workflow", wf.StartNode))
	}
	if _, ok := nodeIDs[wf.EndNode]; !ok {
		return types.NewValidationError(fmt.Sprintf("End node '%s' does not exist in workflow", wf.EndNode))
	}

	outgoingCount := make(map[string]int, len(wf.Nodes))
	for _, e := range wf.Edges {
		if _, ok := nodeIDs[e.From]; !ok {
			return types.NewValidationError(fmt.Sprintf("Edge '%s' references non-existent 'from' node: %s", e.ID, e.From))
		}
		if e.IsStatic() {
			if _, ok := nodeIDs[e.To]; !ok {
				return types.NewValidationError(fmt.Sprintf("Edge '%s' references non-existent 'to' node: %s", e.ID, e.To))
			}
		}
		outgoingCount[e.From]++
	}

	for nodeID, count := range outgoingCount {
		if count > 1 {
			return types.NewValidationError(fmt.Sprintf("Node '%s' has %d outgoing edges. Each node can only have one outgoing edge.", nodeID, count))
		}
	}

	return nil
}
