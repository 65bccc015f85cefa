package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/internal/database"
	"github.com/BaSui01/agentflow/workflow"
)

// workflowRecord is the GORM row shape backing a stored workflow.Workflow.
// The graph itself (Nodes/Edges/State/ParameterSchema) is stored as a
// single JSON blob rather than normalized tables: the graph is read and
// written as a whole on every access, and its shape is owned by the
// workflow package, not by this store.
type workflowRecord struct {
	ID              string `gorm:"primaryKey;size:64"`
	Name            string `gorm:"size:256;index"`
	DefinitionJSON  string `gorm:"type:text"`
	DefaultConfigID string `gorm:"size:64"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (workflowRecord) TableName() string { return "workflows" }

// ErrWorkflowNotFound is returned when no workflow exists with the given id.
var ErrWorkflowNotFound = errors.New("workflow not found")

// GormWorkflowStore persists workflow.Workflow definitions and satisfies
// workflow.WorkflowStore, so the same backing serves both CRUD endpoints
// and the orchestrator's workflow_executor/custom-executor lookups.
type GormWorkflowStore struct {
	pool       *database.PoolManager
	logger     *zap.Logger
	maxRetries int
}

func NewGormWorkflowStore(pool *database.PoolManager, logger *zap.Logger) *GormWorkflowStore {
	return &GormWorkflowStore{
		pool:       pool,
		logger:     logger.With(zap.String("component", "workflow_store")),
		maxRetries: 3,
	}
}

func toRecord(wf *workflow.Workflow) (*workflowRecord, error) {
	body, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow: %w", err)
	}
	return &workflowRecord{
		ID:              wf.ID,
		Name:            wf.Name,
		DefinitionJSON:  string(body),
		DefaultConfigID: wf.DefaultConfigID,
		CreatedAt:       wf.CreatedAt,
		UpdatedAt:       wf.UpdatedAt,
	}, nil
}

func fromRecord(rec *workflowRecord) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(rec.DefinitionJSON), &wf); err != nil {
		return nil, fmt.Errorf("unmarshal workflow: %w", err)
	}
	return &wf, nil
}

// CreateWorkflow inserts a new workflow definition. wf.CreatedAt/UpdatedAt
// are stamped to now if zero.
func (s *GormWorkflowStore) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	now := time.Now()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now

	rec, err := toRecord(wf)
	if err != nil {
		return err
	}
	return s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Create(rec).Error
	})
}

// UpdateWorkflow replaces the stored definition for wf.ID, bumping
// UpdatedAt. Returns ErrWorkflowNotFound if no such workflow exists.
func (s *GormWorkflowStore) UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	wf.UpdatedAt = time.Now()
	rec, err := toRecord(wf)
	if err != nil {
		return err
	}
	return s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		var existing workflowRecord
		if err := tx.WithContext(ctx).First(&existing, "id = ?", wf.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWorkflowNotFound
			}
			return err
		}
		rec.CreatedAt = existing.CreatedAt
		return tx.WithContext(ctx).Save(rec).Error
	})
}

// DeleteWorkflow removes a stored workflow definition. Deleting an id
// that does not exist is a no-op, matching gorm's default Delete behavior.
func (s *GormWorkflowStore) DeleteWorkflow(ctx context.Context, id string) error {
	return s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Delete(&workflowRecord{}, "id = ?", id).Error
	})
}

// GetWorkflow implements workflow.WorkflowStore.
func (s *GormWorkflowStore) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	var rec workflowRecord
	if err := s.pool.DB().WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return fromRecord(&rec)
}

// ListWorkflows returns every stored workflow, most recently updated first.
func (s *GormWorkflowStore) ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	var recs []workflowRecord
	if err := s.pool.DB().WithContext(ctx).Order("updated_at desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	out := make([]*workflow.Workflow, 0, len(recs))
	for i := range recs {
		wf, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, nil
}

var _ workflow.WorkflowStore = (*GormWorkflowStore)(nil)
