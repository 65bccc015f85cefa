// Package store provides a durable, GORM-backed implementation of
// workflow.Journal, built on the same internal/database connection-pool
// wrapper used elsewhere in the engine.
package store

import "time"

// executionRecord is the GORM row shape backing workflow.Execution.
// Parameters/Config/Result are stored as JSON text rather than JSONB so the
// model stays portable across the postgres/mysql/sqlite dialects already
// required by go.mod.
type executionRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	WorkflowID     string `gorm:"index;size:64"`
	Status         string `gorm:"size:16;index"`
	CreatedAt      time.Time
	CompletedAt    *time.Time
	ParametersJSON string `gorm:"type:text"`
	ConfigJSON     string `gorm:"type:text"`
	ConfigID       string `gorm:"size:64"`
	ResultJSON     string `gorm:"type:text"`
	Error          string `gorm:"type:text"`
}

func (executionRecord) TableName() string { return "workflow_executions" }

// nodeExecutionRecord is the GORM row shape backing workflow.NodeExecution.
type nodeExecutionRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	ExecutionID string `gorm:"index;size:64"`
	NodeID      string `gorm:"size:128"`
	Status      string `gorm:"size:16;index"`
	OutputJSON  string `gorm:"type:text"`
	Error       string `gorm:"type:text"`
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (nodeExecutionRecord) TableName() string { return "workflow_node_executions" }

// Models lists every row type this package owns, for callers wiring
// AutoMigrate (see internal/migration) or golang-migrate SQL files.
func Models() []any {
	return []any{&workflowRecord{}, &executionRecord{}, &nodeExecutionRecord{}}
}
