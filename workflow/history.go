package workflow

import "context"

// ExecutionHistory is the read-side view returned by GET
// /executions/{id}/history: the execution record plus every node
// execution recorded against it, in the order they ran. Unlike the
// teacher's ExecutionHistoryStore (a second in-memory store the caller
// had to remember to update alongside the journal), this is a pure
// projection over Journal — there is nothing to keep in sync because
// there is nothing else to store.
type ExecutionHistory struct {
	Execution *Execution       `json:"execution"`
	Nodes     []*NodeExecution `json:"nodes"`
}

// HistoryReader builds an ExecutionHistory from a Journal.
type HistoryReader struct {
	journal Journal
}

func NewHistoryReader(journal Journal) *HistoryReader {
	return &HistoryReader{journal: journal}
}

func (r *HistoryReader) Get(ctx context.Context, executionID string) (*ExecutionHistory, error) {
	exec, err := r.journal.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	nodes, err := r.journal.ListNodeExecutions(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return &ExecutionHistory{Execution: exec, Nodes: nodes}, nil
}
