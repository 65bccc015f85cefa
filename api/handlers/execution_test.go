package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/executors"
	"github.com/BaSui01/agentflow/workflow"
)

func greetWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		ID:        "greet",
		Name:      "greet",
		StartNode: "say",
		EndNode:   "say",
		Nodes: []workflow.Node{
			{ID: "say", Type: "transform", Config: map[string]any{"output": "hello"}},
		},
	}
}

func newTestExecutionHandler(t *testing.T, opts ...ExecutionHandlerOption) *ExecutionHandler {
	t.Helper()
	store := workflow.NewMemoryWorkflowStore()
	require.NoError(t, store.CreateWorkflow(context.Background(), greetWorkflow()))

	registry := workflow.NewExecutorRegistry(store, zap.NewNop())
	registry.RegisterBuiltin(executors.NewTransformExecutor())

	journal := workflow.NewMemoryJournal()
	orch := workflow.NewOrchestrator(store, registry, journal, nil, zap.NewNop())

	return NewExecutionHandler(store, orch, journal, nil, zap.NewNop(), opts...)
}

func TestExecutionHandlerStart(t *testing.T) {
	h := newTestExecutionHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(api.StartExecutionRequest{WorkflowID: "greet"})
	req := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "completed")
}

func TestExecutionHandlerStartUnknownWorkflow(t *testing.T) {
	h := newTestExecutionHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(api.StartExecutionRequest{WorkflowID: "missing"})
	req := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecutionHandlerGetAndHistory(t *testing.T) {
	h := newTestExecutionHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(api.StartExecutionRequest{WorkflowID: "greet"})
	startReq := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewReader(body))
	startRec := httptest.NewRecorder()
	mux.ServeHTTP(startRec, startReq)

	var started struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(startRec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ID)

	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/executions/"+started.ID, nil))
	assert.Equal(t, http.StatusOK, getRec.Code)

	histRec := httptest.NewRecorder()
	mux.ServeHTTP(histRec, httptest.NewRequest(http.MethodGet, "/executions/"+started.ID+"/history", nil))
	assert.Equal(t, http.StatusOK, histRec.Code)
	assert.Contains(t, histRec.Body.String(), "say")
}

func TestExecutionHandlerStreamSSE(t *testing.T) {
	h := newTestExecutionHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	body, _ := json.Marshal(api.StartExecutionRequest{WorkflowID: "greet"})
	resp, err := http.Post(srv.URL+"/executions/greet/stream", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "event: workflow_complete")
}

func TestExecutionHandlerServeWS(t *testing.T) {
	h := newTestExecutionHandler(t, WithStreamBufferSize(4))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/executions/greet/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	body, _ := json.Marshal(api.StartExecutionRequest{WorkflowID: "greet"})
	require.NoError(t, conn.Write(ctx, websocket.MessageText, body))

	sawComplete := false
	for !sawComplete {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var event workflow.StreamEvent
		require.NoError(t, json.Unmarshal(data, &event))
		if event.Type == workflow.EventWorkflowComplete {
			sawComplete = true
		}
	}
	assert.True(t, sawComplete, "expected a workflow_complete event over the socket")
}
