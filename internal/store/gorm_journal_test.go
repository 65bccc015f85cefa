package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/internal/database"
	"github.com/BaSui01/agentflow/workflow"
)

func setupJournal(t *testing.T) (*GormJournal, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	pool, err := database.NewPoolManager(gormDB, database.PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	return NewGormJournal(pool, zap.NewNop()), mock
}

func TestGormJournalCreateExecution(t *testing.T) {
	j, mock := setupJournal(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "workflow_executions"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	exec, err := j.CreateExecution(context.Background(), "wf-1", map[string]any{"x": float64(1)}, nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, exec.ID)
	assert.Equal(t, "wf-1", exec.WorkflowID)
	assert.Equal(t, workflow.StatusPending, exec.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormJournalGetExecutionNotFound(t *testing.T) {
	j, mock := setupJournal(t)

	mock.ExpectQuery(`SELECT \* FROM "workflow_executions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := j.GetExecution(context.Background(), "missing")
	require.ErrorIs(t, err, workflow.ErrExecutionNotFound)
}

func TestGormJournalCompleteExecution(t *testing.T) {
	j, mock := setupJournal(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "workflow_id", "status", "created_at"}).
		AddRow("exec-1", "wf-1", string(workflow.StatusRunning), now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "workflow_executions"`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "workflow_executions"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := j.CompleteExecution(context.Background(), "exec-1", map[string]any{"ok": true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormJournalListNodeExecutions(t *testing.T) {
	j, mock := setupJournal(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "execution_id", "node_id", "status", "created_at"}).
		AddRow("ne-1", "exec-1", "start", string(workflow.StatusCompleted), now)

	mock.ExpectQuery(`SELECT \* FROM "workflow_node_executions"`).WillReturnRows(rows)

	got, err := j.ListNodeExecutions(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "start", got[0].NodeID)
	assert.Equal(t, workflow.StatusCompleted, got[0].Status)
}
