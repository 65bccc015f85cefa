package workflow

import (
	"context"
	"time"
)

// EventKind enumerates the stream event types emitted by the orchestrator.
type EventKind string

const (
	EventWorkflowStart    EventKind = "workflow_start"
	EventWorkflowComplete EventKind = "workflow_complete"
	EventNodeStart        EventKind = "node_start"
	EventNodeChunk        EventKind = "node_chunk"
	EventNodeComplete     EventKind = "node_complete"
	EventStateUpdated     EventKind = "state_updated"
	EventError            EventKind = "error"
)

// StreamEvent is the envelope carried by every event emitted during a
// (possibly nested) execution.
type StreamEvent struct {
	Type              EventKind      `json:"type"`
	Timestamp         time.Time      `json:"timestamp"`
	WorkflowID        string         `json:"workflowId"`
	ExecutionID       string         `json:"executionId"`
	Depth             int            `json:"depth"`
	Path              []string       `json:"path"`
	ParentExecutionID string         `json:"parentExecutionId,omitempty"`
	Data              any            `json:"data,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// EventSink is a destination for streaming events: an SSE writer, a
// websocket connection, or an in-memory collector for tests. Emit may
// apply back-pressure; the orchestrator suspends on it like any other I/O.
type EventSink interface {
	Emit(ctx context.Context, event StreamEvent) error
}

// StreamingContext is the per-execution envelope tagging every event with
// its nesting depth and path, and (for sub-workflows) its parent execution
// id. Nested sub-workflow invocations inherit the same Sink.
type StreamingContext struct {
	Sink              EventSink
	ExecutionID       string
	WorkflowID        string
	Depth             int
	Path              []string
	ParentExecutionID string
}

// child derives the streaming context for a sub-workflow invoked from
// nodeID: depth+1, path extended by nodeID, parent set to this execution.
func (s *StreamingContext) child(subExecutionID, subWorkflowID, nodeID string) *StreamingContext {
	path := make([]string, len(s.Path)+1)
	copy(path, s.Path)
	path[len(s.Path)] = nodeID

	return &StreamingContext{
		Sink:              s.Sink,
		ExecutionID:       subExecutionID,
		WorkflowID:        subWorkflowID,
		Depth:             s.Depth + 1,
		Path:              path,
		ParentExecutionID: s.ExecutionID,
	}
}

func (s *StreamingContext) emit(ctx context.Context, kind EventKind, data any, metadata map[string]any) error {
	if s == nil || s.Sink == nil {
		return nil
	}
	return s.Sink.Emit(ctx, StreamEvent{
		Type:              kind,
		Timestamp:         time.Now(),
		WorkflowID:        s.WorkflowID,
		ExecutionID:       s.ExecutionID,
		Depth:             s.Depth,
		Path:              s.Path,
		ParentExecutionID: s.ParentExecutionID,
		Data:              data,
		Metadata:          metadata,
	})
}

// FuncSink adapts a plain function into an EventSink, convenient for tests
// and for the websocket/SSE writers that just serialize-and-write.
type FuncSink func(ctx context.Context, event StreamEvent) error

func (f FuncSink) Emit(ctx context.Context, event StreamEvent) error { return f(ctx, event) }

// CollectorSink accumulates events in memory, useful for tests asserting
// on event ordering.
type CollectorSink struct {
	Events []StreamEvent
}

func (c *CollectorSink) Emit(_ context.Context, event StreamEvent) error {
	c.Events = append(c.Events, event)
	return nil
}
