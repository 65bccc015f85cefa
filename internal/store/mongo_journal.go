package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/workflow"
)

// MongoJournal is an alternate durable workflow.Journal backing, kept
// alongside GormJournal to show the interface is storage-agnostic:
// whichever one a deployment wires into NewOrchestrator, the orchestrator
// itself never changes.
type MongoJournal struct {
	executions *mongo.Collection
	nodeExecs  *mongo.Collection
	logger     *zap.Logger
}

// NewMongoJournal uses two collections off db: "workflow_executions" and
// "workflow_node_executions". Callers are responsible for creating any
// indexes they want (executionId is the natural one for the latter).
func NewMongoJournal(db *mongo.Database, logger *zap.Logger) *MongoJournal {
	return &MongoJournal{
		executions: db.Collection("workflow_executions"),
		nodeExecs:  db.Collection("workflow_node_executions"),
		logger:     logger.With(zap.String("component", "workflow_journal_mongo")),
	}
}

type executionDoc struct {
	ID          string         `bson:"_id"`
	WorkflowID  string         `bson:"workflowId"`
	Status      string         `bson:"status"`
	CreatedAt   time.Time      `bson:"createdAt"`
	CompletedAt *time.Time     `bson:"completedAt,omitempty"`
	Parameters  map[string]any `bson:"parameters,omitempty"`
	Config      map[string]any `bson:"config,omitempty"`
	ConfigID    string         `bson:"configId,omitempty"`
	Result      any            `bson:"result,omitempty"`
	Error       string         `bson:"error,omitempty"`
}

func (d *executionDoc) toExecution() *workflow.Execution {
	return &workflow.Execution{
		ID:          d.ID,
		WorkflowID:  d.WorkflowID,
		Status:      workflow.Status(d.Status),
		CreatedAt:   d.CreatedAt,
		CompletedAt: d.CompletedAt,
		Parameters:  d.Parameters,
		Config:      d.Config,
		ConfigID:    d.ConfigID,
		Result:      d.Result,
		Error:       d.Error,
	}
}

type nodeExecutionDoc struct {
	ID          string     `bson:"_id"`
	ExecutionID string     `bson:"executionId"`
	NodeID      string     `bson:"nodeId"`
	Status      string     `bson:"status"`
	Output      any        `bson:"output,omitempty"`
	Error       string     `bson:"error,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
}

func (d *nodeExecutionDoc) toNodeExecution() *workflow.NodeExecution {
	return &workflow.NodeExecution{
		ID:          d.ID,
		ExecutionID: d.ExecutionID,
		NodeID:      d.NodeID,
		Status:      workflow.Status(d.Status),
		Output:      d.Output,
		Error:       d.Error,
		CreatedAt:   d.CreatedAt,
		CompletedAt: d.CompletedAt,
	}
}

func (j *MongoJournal) CreateExecution(ctx context.Context, workflowID string, parameters, config map[string]any, configID string) (*workflow.Execution, error) {
	doc := &executionDoc{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     string(workflow.StatusPending),
		CreatedAt:  time.Now(),
		Parameters: parameters,
		Config:     config,
		ConfigID:   configID,
	}
	if _, err := j.executions.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}
	return doc.toExecution(), nil
}

func (j *MongoJournal) MarkExecutionRunning(ctx context.Context, executionID string) error {
	return j.updateExecution(ctx, executionID, bson.M{"status": string(workflow.StatusRunning)})
}

func (j *MongoJournal) CompleteExecution(ctx context.Context, executionID string, result any) error {
	now := time.Now()
	return j.updateExecution(ctx, executionID, bson.M{
		"status":      string(workflow.StatusCompleted),
		"result":      result,
		"completedAt": now,
	})
}

func (j *MongoJournal) FailExecution(ctx context.Context, executionID string, errMsg string) error {
	now := time.Now()
	return j.updateExecution(ctx, executionID, bson.M{
		"status":      string(workflow.StatusFailed),
		"error":       errMsg,
		"completedAt": now,
	})
}

func (j *MongoJournal) updateExecution(ctx context.Context, executionID string, set bson.M) error {
	res, err := j.executions.UpdateOne(ctx,
		bson.M{"_id": executionID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if res.MatchedCount == 0 {
		return workflow.ErrExecutionNotFound
	}
	return nil
}

func (j *MongoJournal) GetExecution(ctx context.Context, executionID string) (*workflow.Execution, error) {
	var doc executionDoc
	if err := j.executions.FindOne(ctx, bson.M{"_id": executionID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, workflow.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return doc.toExecution(), nil
}

func (j *MongoJournal) CreateNodeExecution(ctx context.Context, executionID, nodeID string) (*workflow.NodeExecution, error) {
	doc := &nodeExecutionDoc{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		NodeID:      nodeID,
		Status:      string(workflow.StatusRunning),
		CreatedAt:   time.Now(),
	}
	if _, err := j.nodeExecs.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create node execution: %w", err)
	}
	return doc.toNodeExecution(), nil
}

func (j *MongoJournal) CompleteNodeExecution(ctx context.Context, nodeExecutionID string, output any) error {
	now := time.Now()
	return j.updateNodeExecution(ctx, nodeExecutionID, bson.M{
		"status":      string(workflow.StatusCompleted),
		"output":      output,
		"completedAt": now,
	})
}

func (j *MongoJournal) FailNodeExecution(ctx context.Context, nodeExecutionID string, errMsg string) error {
	now := time.Now()
	return j.updateNodeExecution(ctx, nodeExecutionID, bson.M{
		"status":      string(workflow.StatusFailed),
		"error":       errMsg,
		"completedAt": now,
	})
}

func (j *MongoJournal) updateNodeExecution(ctx context.Context, nodeExecutionID string, set bson.M) error {
	res, err := j.nodeExecs.UpdateOne(ctx,
		bson.M{"_id": nodeExecutionID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("update node execution: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("node execution %s not found", nodeExecutionID)
	}
	return nil
}

func (j *MongoJournal) ListNodeExecutions(ctx context.Context, executionID string) ([]*workflow.NodeExecution, error) {
	cur, err := j.nodeExecs.Find(ctx, bson.M{"executionId": executionID})
	if err != nil {
		return nil, fmt.Errorf("list node executions: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]*workflow.NodeExecution, 0)
	for cur.Next(ctx) {
		var doc nodeExecutionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode node execution: %w", err)
		}
		out = append(out, doc.toNodeExecution())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list node executions: %w", err)
	}
	return out, nil
}

var _ workflow.Journal = (*MongoJournal)(nil)
