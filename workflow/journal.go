package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is shared by Execution and NodeExecution; both state machines are
// `pending -> running -> {completed, failed}` (NodeExecution skips pending,
// it is created directly in running).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Execution is one run of a workflow.
type Execution struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflowId"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Parameters  map[string]any `json:"parameters"`
	Config      map[string]any `json:"config,omitempty"`
	ConfigID    string         `json:"configId,omitempty"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// NodeExecution is one invocation of one node inside one execution.
// Multiple rows may share (ExecutionID, NodeID) across a cyclic traversal.
type NodeExecution struct {
	ID          string     `json:"id"`
	ExecutionID string     `json:"executionId"`
	NodeID      string     `json:"nodeId"`
	Status      Status     `json:"status"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Journal persists and retrieves execution and node-execution records. It
// is implemented by a durable backing (internal/store's GORM or Mongo
// journals) and by MemoryJournal for dry-run requests; the orchestrator is
// written against this interface alone.
type Journal interface {
	CreateExecution(ctx context.Context, workflowID string, parameters, config map[string]any, configID string) (*Execution, error)
	MarkExecutionRunning(ctx context.Context, executionID string) error
	CompleteExecution(ctx context.Context, executionID string, result any) error
	FailExecution(ctx context.Context, executionID string, errMsg string) error
	GetExecution(ctx context.Context, executionID string) (*Execution, error)

	CreateNodeExecution(ctx context.Context, executionID, nodeID string) (*NodeExecution, error)
	CompleteNodeExecution(ctx context.Context, nodeExecutionID string, output any) error
	FailNodeExecution(ctx context.Context, nodeExecutionID string, errMsg string) error
	ListNodeExecutions(ctx context.Context, executionID string) ([]*NodeExecution, error)
}

// ErrExecutionNotFound is returned by GetExecution when no record exists.
var ErrExecutionNotFound = fmt.Errorf("execution not found")

// MemoryJournal is a stateless (per-process, not per-record) in-memory
// Journal used for dry-run requests: it lives only for the lifetime of a
// single orchestrator invocation and is discarded afterward.
type MemoryJournal struct {
	mu             sync.Mutex
	executions     map[string]*Execution
	nodeExecutions map[string]*NodeExecution
	byExecution    map[string][]string // executionID -> ordered nodeExecution ids
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		executions:     make(map[string]*Execution),
		nodeExecutions: make(map[string]*NodeExecution),
		byExecution:    make(map[string][]string),
	}
}

func (j *MemoryJournal) CreateExecution(_ context.Context, workflowID string, parameters, config map[string]any, configID string) (*Execution, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e := &Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
		Parameters: parameters,
		Config:     config,
		ConfigID:   configID,
	}
	j.executions[e.ID] = e
	return e, nil
}

func (j *MemoryJournal) MarkExecutionRunning(_ context.Context, executionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.executions[executionID]
	if !ok {
		return ErrExecutionNotFound
	}
	e.Status = StatusRunning
	return nil
}

func (j *MemoryJournal) CompleteExecution(_ context.Context, executionID string, result any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.executions[executionID]
	if !ok {
		return ErrExecutionNotFound
	}
	now := time.Now()
	e.Status = StatusCompleted
	e.Result = result
	e.CompletedAt = &now
	return nil
}

func (j *MemoryJournal) FailExecution(_ context.Context, executionID string, errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.executions[executionID]
	if !ok {
		return ErrExecutionNotFound
	}
	now := time.Now()
	e.Status = StatusFailed
	e.Error = errMsg
	e.CompletedAt = &now
	return nil
}

func (j *MemoryJournal) GetExecution(_ context.Context, executionID string) (*Execution, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.executions[executionID]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	copied := *e
	return &copied, nil
}

func (j *MemoryJournal) CreateNodeExecution(_ context.Context, executionID, nodeID string) (*NodeExecution, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ne := &NodeExecution{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		NodeID:      nodeID,
		Status:      StatusRunning,
		CreatedAt:   time.Now(),
	}
	j.nodeExecutions[ne.ID] = ne
	j.byExecution[executionID] = append(j.byExecution[executionID], ne.ID)
	return ne, nil
}

func (j *MemoryJournal) CompleteNodeExecution(_ context.Context, nodeExecutionID string, output any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	ne, ok := j.nodeExecutions[nodeExecutionID]
	if !ok {
		return fmt.Errorf("node execution %s not found", nodeExecutionID)
	}
	now := time.Now()
	ne.Status = StatusCompleted
	ne.Output = output
	ne.CompletedAt = &now
	return nil
}

func (j *MemoryJournal) FailNodeExecution(_ context.Context, nodeExecutionID string, errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	ne, ok := j.nodeExecutions[nodeExecutionID]
	if !ok {
		return fmt.Errorf("node execution %s not found", nodeExecutionID)
	}
	now := time.Now()
	ne.Status = StatusFailed
	ne.Error = errMsg
	ne.CompletedAt = &now
	return nil
}

func (j *MemoryJournal) ListNodeExecutions(_ context.Context, executionID string) ([]*NodeExecution, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := j.byExecution[executionID]
	out := make([]*NodeExecution, 0, len(ids))
	for _, id := range ids {
		ne := j.nodeExecutions[id]
		copied := *ne
		out = append(out, &copied)
	}
	return out, nil
}
