package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/internal/channel"
	"github.com/BaSui01/agentflow/types"
	"github.com/BaSui01/agentflow/workflow"
)

// ConfigResolver fetches a workflow configuration's resolved variables by
// id. Executions that omit configId use the workflow's DefaultConfigID; when
// that is empty too (or no resolver is set) they run with an empty config map.
type ConfigResolver interface {
	GetVariables(ctx context.Context, configID string) (map[string]any, error)
}

// ExecutionHandler serves POST /executions, GET /executions/{id},
// GET /executions/{id}/history, POST /executions/{workflowId}/stream, and
// GET /executions/{id}/ws.
type ExecutionHandler struct {
	store              workflow.WorkflowStore
	orch               *workflow.Orchestrator
	journal            workflow.Journal
	history            *workflow.HistoryReader
	configs            ConfigResolver
	streamBufferConfig channel.TunableConfig
	logger             *zap.Logger
}

// ExecutionHandlerOption configures an ExecutionHandler at construction.
type ExecutionHandlerOption func(*ExecutionHandler)

// WithStreamBufferSize sets the initial size of the tunable channel backing
// each websocket subscriber's outgoing event buffer (workflow.StreamBufferSize
// in config.WorkflowConfig). The channel still grows and shrinks on its own
// under sustained back-pressure.
func WithStreamBufferSize(n int) ExecutionHandlerOption {
	return func(h *ExecutionHandler) {
		if n > 0 {
			h.streamBufferConfig.InitialSize = n
		}
	}
}

func NewExecutionHandler(store workflow.WorkflowStore, orch *workflow.Orchestrator, journal workflow.Journal, configs ConfigResolver, logger *zap.Logger, opts ...ExecutionHandlerOption) *ExecutionHandler {
	h := &ExecutionHandler{
		store:              store,
		orch:               orch,
		journal:            journal,
		history:            workflow.NewHistoryReader(journal),
		configs:            configs,
		streamBufferConfig: channel.DefaultTunableConfig(),
		logger:             logger.With(zap.String("component", "execution_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires /executions and /executions/{id}[/history|/stream].
func (h *ExecutionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/executions", h.handleCollection)
	mux.HandleFunc("/executions/", h.handleItem)
}

func (h *ExecutionHandler) handleCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}
	h.start(w, r)
}

func (h *ExecutionHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/executions/")
	if rest == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "execution id is required", h.logger)
		return
	}

	wantMethod := http.MethodGet
	if strings.HasSuffix(rest, "/stream") {
		wantMethod = http.MethodPost
	}
	if r.Method != wantMethod {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	switch {
	case strings.HasSuffix(rest, "/history"):
		h.getHistory(w, r, strings.TrimSuffix(rest, "/history"))
	case strings.HasSuffix(rest, "/stream"):
		h.stream(w, r, strings.TrimSuffix(rest, "/stream"))
	case strings.HasSuffix(rest, "/ws"):
		h.serveWS(w, r, strings.TrimSuffix(rest, "/ws"))
	default:
		h.get(w, r, rest)
	}
}

func (h *ExecutionHandler) start(w http.ResponseWriter, r *http.Request) {
	var req api.StartExecutionRequest
	if DecodeJSONBody(w, r, &req, h.logger) != nil {
		return
	}
	if req.WorkflowID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "workflowId is required", h.logger)
		return
	}

	wf, err := h.store.GetWorkflow(r.Context(), req.WorkflowID)
	if err != nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, err.Error(), h.logger)
		return
	}

	config, err := h.resolveConfig(r.Context(), req.ConfigID, wf.DefaultConfigID)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadGateway, types.ErrUpstreamError, err.Error(), h.logger)
		return
	}

	exec, err := h.orch.Execute(r.Context(), wf, req.Parameters, config, req.ConfigID, nil)
	if err != nil {
		if exec != nil {
			WriteJSON(w, http.StatusOK, exec)
			return
		}
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, exec)
}

func (h *ExecutionHandler) resolveConfig(ctx context.Context, requested, fallback string) (map[string]any, error) {
	configID := requested
	if configID == "" {
		configID = fallback
	}
	if configID == "" || h.configs == nil {
		return map[string]any{}, nil
	}
	vars, err := h.configs.GetVariables(ctx, configID)
	if err != nil {
		return nil, err
	}
	return vars, nil
}

func (h *ExecutionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	exec, err := h.journal.GetExecution(r.Context(), id)
	if err != nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, exec)
}

func (h *ExecutionHandler) getHistory(w http.ResponseWriter, r *http.Request, id string) {
	hist, err := h.history.Get(r.Context(), id)
	if err != nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, hist)
}

// stream re-runs the named workflow as a fresh execution and streams its
// events as an SSE response. It is the polling alternative to a websocket
// connection for clients that only need a one-way feed.
func (h *ExecutionHandler) stream(w http.ResponseWriter, r *http.Request, workflowID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "streaming unsupported", h.logger)
		return
	}

	var req api.StartExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid JSON body", h.logger)
		return
	}
	req.WorkflowID = workflowID

	wf, err := h.store.GetWorkflow(r.Context(), workflowID)
	if err != nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, err.Error(), h.logger)
		return
	}

	config, err := h.resolveConfig(r.Context(), req.ConfigID, wf.DefaultConfigID)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadGateway, types.ErrUpstreamError, err.Error(), h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := workflow.FuncSink(func(_ context.Context, event workflow.StreamEvent) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if _, err := h.orch.Execute(r.Context(), wf, req.Parameters, config, req.ConfigID, sink); err != nil {
		h.logger.Warn("streamed execution failed", zap.String("workflowId", workflowID), zap.Error(err))
	}
}

// serveWS upgrades the request to a websocket and re-runs the named
// workflow, relaying every StreamEvent as a JSON text frame. A GET request
// has no body to carry StartExecutionRequest, so the client sends it as the
// first text frame after the upgrade completes instead; an empty or absent
// frame runs the workflow with no parameters. Events are buffered through a
// channel.TunableChannel rather than written inline from the orchestrator's
// goroutine, so the buffer absorbs a slow client; once it is full, the
// sink's Send blocks and node execution waits for the client to catch up.
func (h *ExecutionHandler) serveWS(w http.ResponseWriter, r *http.Request, workflowID string) {
	wf, err := h.store.GetWorkflow(r.Context(), workflowID)
	if err != nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, err.Error(), h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.String("workflowId", workflowID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	var req api.StartExecutionRequest
	if _, data, err := conn.Read(ctx); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			_ = conn.Close(websocket.StatusUnsupportedData, "invalid JSON start frame")
			return
		}
	}
	req.WorkflowID = workflowID

	config, err := h.resolveConfig(ctx, req.ConfigID, wf.DefaultConfigID)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "config resolution failed")
		return
	}

	buf := channel.NewTunableChannel[workflow.StreamEvent](h.streamBufferConfig)
	defer buf.Close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			event, err := buf.Receive(ctx)
			if err != nil {
				return
			}
			buf.Tune()
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
			if event.Type == workflow.EventWorkflowComplete || event.Type == workflow.EventError {
				return
			}
		}
	}()

	sink := workflow.FuncSink(func(sendCtx context.Context, event workflow.StreamEvent) error {
		return buf.Send(sendCtx, event)
	})

	if _, err := h.orch.Execute(ctx, wf, req.Parameters, config, req.ConfigID, sink); err != nil {
		h.logger.Warn("websocket execution failed", zap.String("workflowId", workflowID), zap.Error(err))
	}

	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "execution finished")
}
