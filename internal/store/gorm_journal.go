package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/internal/database"
	"github.com/BaSui01/agentflow/workflow"
)

// GormJournal is the durable workflow.Journal backing used in production:
// every state transition commits through internal/database's connection
// pool, with the same retry-on-transient-failure behaviour the rest of the
// engine's SQL writers use.
type GormJournal struct {
	pool       *database.PoolManager
	logger     *zap.Logger
	maxRetries int
}

// NewGormJournal wraps an already-initialized connection pool. Callers are
// responsible for migrating Models() (via internal/migration or
// golang-migrate) before first use.
func NewGormJournal(pool *database.PoolManager, logger *zap.Logger) *GormJournal {
	return &GormJournal{
		pool:       pool,
		logger:     logger.With(zap.String("component", "workflow_journal")),
		maxRetries: 3,
	}
}

func marshalAny(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMap(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func unmarshalAny(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (j *GormJournal) CreateExecution(ctx context.Context, workflowID string, parameters, config map[string]any, configID string) (*workflow.Execution, error) {
	paramsJSON, err := marshalAny(parameters)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	configJSON, err := marshalAny(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	rec := &executionRecord{
		ID:             uuid.NewString(),
		WorkflowID:     workflowID,
		Status:         string(workflow.StatusPending),
		CreatedAt:      time.Now(),
		ParametersJSON: paramsJSON,
		ConfigJSON:     configJSON,
		ConfigID:       configID,
	}

	if err := j.pool.WithTransactionRetry(ctx, j.maxRetries, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Create(rec).Error
	}); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	return &workflow.Execution{
		ID:         rec.ID,
		WorkflowID: rec.WorkflowID,
		Status:     workflow.StatusPending,
		CreatedAt:  rec.CreatedAt,
		Parameters: parameters,
		Config:     config,
		ConfigID:   configID,
	}, nil
}

func (j *GormJournal) MarkExecutionRunning(ctx context.Context, executionID string) error {
	return j.updateExecution(ctx, executionID, func(rec *executionRecord) {
		rec.Status = string(workflow.StatusRunning)
	})
}

func (j *GormJournal) CompleteExecution(ctx context.Context, executionID string, result any) error {
	resultJSON, err := marshalAny(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	now := time.Now()
	return j.updateExecution(ctx, executionID, func(rec *executionRecord) {
		rec.Status = string(workflow.StatusCompleted)
		rec.ResultJSON = resultJSON
		rec.CompletedAt = &now
	})
}

func (j *GormJournal) FailExecution(ctx context.Context, executionID string, errMsg string) error {
	now := time.Now()
	return j.updateExecution(ctx, executionID, func(rec *executionRecord) {
		rec.Status = string(workflow.StatusFailed)
		rec.Error = errMsg
		rec.CompletedAt = &now
	})
}

func (j *GormJournal) updateExecution(ctx context.Context, executionID string, mutate func(*executionRecord)) error {
	return j.pool.WithTransactionRetry(ctx, j.maxRetries, func(tx *gorm.DB) error {
		var rec executionRecord
		if err := tx.WithContext(ctx).First(&rec, "id = ?", executionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return workflow.ErrExecutionNotFound
			}
			return err
		}
		mutate(&rec)
		return tx.WithContext(ctx).Save(&rec).Error
	})
}

func (j *GormJournal) GetExecution(ctx context.Context, executionID string) (*workflow.Execution, error) {
	var rec executionRecord
	if err := j.pool.DB().WithContext(ctx).First(&rec, "id = ?", executionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return j.toExecution(&rec)
}

func (j *GormJournal) toExecution(rec *executionRecord) (*workflow.Execution, error) {
	params, err := unmarshalMap(rec.ParametersJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	cfg, err := unmarshalMap(rec.ConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	result, err := unmarshalAny(rec.ResultJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &workflow.Execution{
		ID:          rec.ID,
		WorkflowID:  rec.WorkflowID,
		Status:      workflow.Status(rec.Status),
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
		Parameters:  params,
		Config:      cfg,
		ConfigID:    rec.ConfigID,
		Result:      result,
		Error:       rec.Error,
	}, nil
}

func (j *GormJournal) CreateNodeExecution(ctx context.Context, executionID, nodeID string) (*workflow.NodeExecution, error) {
	rec := &nodeExecutionRecord{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		NodeID:      nodeID,
		Status:      string(workflow.StatusRunning),
		CreatedAt:   time.Now(),
	}
	if err := j.pool.WithTransactionRetry(ctx, j.maxRetries, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Create(rec).Error
	}); err != nil {
		return nil, fmt.Errorf("create node execution: %w", err)
	}
	return &workflow.NodeExecution{
		ID:          rec.ID,
		ExecutionID: rec.ExecutionID,
		NodeID:      rec.NodeID,
		Status:      workflow.StatusRunning,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

func (j *GormJournal) CompleteNodeExecution(ctx context.Context, nodeExecutionID string, output any) error {
	outputJSON, err := marshalAny(output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	now := time.Now()
	return j.updateNodeExecution(ctx, nodeExecutionID, func(rec *nodeExecutionRecord) {
		rec.Status = string(workflow.StatusCompleted)
		rec.OutputJSON = outputJSON
		rec.CompletedAt = &now
	})
}

func (j *GormJournal) FailNodeExecution(ctx context.Context, nodeExecutionID string, errMsg string) error {
	now := time.Now()
	return j.updateNodeExecution(ctx, nodeExecutionID, func(rec *nodeExecutionRecord) {
		rec.Status = string(workflow.StatusFailed)
		rec.Error = errMsg
		rec.CompletedAt = &now
	})
}

func (j *GormJournal) updateNodeExecution(ctx context.Context, nodeExecutionID string, mutate func(*nodeExecutionRecord)) error {
	return j.pool.WithTransactionRetry(ctx, j.maxRetries, func(tx *gorm.DB) error {
		var rec nodeExecutionRecord
		if err := tx.WithContext(ctx).First(&rec, "id = ?", nodeExecutionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("node execution %s not found", nodeExecutionID)
			}
			return err
		}
		mutate(&rec)
		return tx.WithContext(ctx).Save(&rec).Error
	})
}

func (j *GormJournal) ListNodeExecutions(ctx context.Context, executionID string) ([]*workflow.NodeExecution, error) {
	var recs []nodeExecutionRecord
	if err := j.pool.DB().WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("created_at asc").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list node executions: %w", err)
	}

	out := make([]*workflow.NodeExecution, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		output, err := unmarshalAny(rec.OutputJSON)
		if err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
		out = append(out, &workflow.NodeExecution{
			ID:          rec.ID,
			ExecutionID: rec.ExecutionID,
			NodeID:      rec.NodeID,
			Status:      workflow.Status(rec.Status),
			Output:      output,
			Error:       rec.Error,
			CreatedAt:   rec.CreatedAt,
			CompletedAt: rec.CompletedAt,
		})
	}
	return out, nil
}

var _ workflow.Journal = (*GormJournal)(nil)
