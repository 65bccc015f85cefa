package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingContextEmitNoopWithoutSink(t *testing.T) {
	sc := &StreamingContext{ExecutionID: "e1", WorkflowID: "wf1"}
	require.NoError(t, sc.emit(context.Background(), EventNodeStart, nil, nil))

	var nilSC *StreamingContext
	require.NoError(t, nilSC.emit(context.Background(), EventNodeStart, nil, nil))
}

func TestStreamingContextEmitDeliversToSink(t *testing.T) {
	sink := &CollectorSink{}
	sc := &StreamingContext{Sink: sink, ExecutionID: "e1", WorkflowID: "wf1", Depth: 0, Path: []string{}}

	require.NoError(t, sc.emit(context.Background(), EventNodeStart, nil, map[string]any{"nodeId": "n1"}))

	require.Len(t, sink.Events, 1)
	evt := sink.Events[0]
	assert.Equal(t, EventNodeStart, evt.Type)
	assert.Equal(t, "e1", evt.ExecutionID)
	assert.Equal(t, "wf1", evt.WorkflowID)
	assert.Equal(t, "n1", evt.Metadata["nodeId"])
}

func TestStreamingContextChildDerivesDepthAndPath(t *testing.T) {
	sink := &CollectorSink{}
	parent := &StreamingContext{Sink: sink, ExecutionID: "e1", WorkflowID: "wf1", Depth: 0, Path: []string{}}

	child := parent.child("e2", "wf2", "sub_node")
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, []string{"sub_node"}, child.Path)
	assert.Equal(t, "e1", child.ParentExecutionID)
	assert.Equal(t, "e2", child.ExecutionID)
	assert.Equal(t, "wf2", child.WorkflowID)

	grandchild := child.child("e3", "wf3", "deeper_node")
	assert.Equal(t, 2, grandchild.Depth)
	assert.Equal(t, []string{"sub_node", "deeper_node"}, grandchild.Path)
	assert.Equal(t, "e2", grandchild.ParentExecutionID)
}

func TestFuncSinkAdapts(t *testing.T) {
	var received StreamEvent
	sink := FuncSink(func(_ context.Context, event StreamEvent) error {
		received = event
		return nil
	})
	sc := &StreamingContext{Sink: sink, ExecutionID: "e1", WorkflowID: "wf1"}
	require.NoError(t, sc.emit(context.Background(), EventWorkflowComplete, "done", nil))
	assert.Equal(t, EventWorkflowComplete, received.Type)
	assert.Equal(t, "done", received.Data)
}
