package executors

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// SQLExecutor runs a parameterized SQL statement against an injected
// *gorm.DB — the same handle internal/store's GormJournal uses, so a
// workflow's sql nodes share the engine's own connection pool rather than
// opening one of their own. Config:
//
//	query (string, required)
//	args  ([]any, optional — positional placeholders)
//
// SELECT statements return {"rows": []map[string]any}; anything else
// returns {"rowsAffected": int64}.
type SQLExecutor struct {
	db *gorm.DB
}

func NewSQLExecutor(db *gorm.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

func (e *SQLExecutor) Type() string { return "sql" }

func (e *SQLExecutor) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"query"},
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"args":  map[string]any{"type": "array"},
		},
	}
}

func (e *SQLExecutor) Run(ctx context.Context, parsedConfig, _ map[string]any) (any, error) {
	query, _ := parsedConfig["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("sql executor requires a non-empty 'query'")
	}
	args, _ := parsedConfig["args"].([]any)

	db := e.db.WithContext(ctx)

	if isSelect(query) {
		var rows []map[string]any
		if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("sql executor: query: %w", err)
		}
		return map[string]any{"rows": rows}, nil
	}

	result := db.Exec(query, args...)
	if result.Error != nil {
		return nil, fmt.Errorf("sql executor: exec: %w", result.Error)
	}
	return map[string]any{"rowsAffected": result.RowsAffected}, nil
}

func isSelect(query string) bool {
	trimmed := strings.TrimSpace(query)
	return len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "select")
}
