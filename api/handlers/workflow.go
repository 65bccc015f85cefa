package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/types"
	"github.com/BaSui01/agentflow/workflow"
)

// WorkflowRepository is the persistence surface WorkflowHandler needs: a
// workflow.WorkflowStore plus the write/list operations the orchestrator
// itself never requires.
type WorkflowRepository interface {
	workflow.WorkflowStore
	CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error
	UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
	ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error)
}

// ErrWorkflowNotFound mirrors the repository's not-found sentinel so this
// package doesn't have to import internal/store directly.
var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowHandler serves CRUD operations under /workflows.
type WorkflowHandler struct {
	repo   WorkflowRepository
	logger *zap.Logger
}

func NewWorkflowHandler(repo WorkflowRepository, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{repo: repo, logger: logger.With(zap.String("component", "workflow_handler"))}
}

// RegisterRoutes wires /workflows and /workflows/{id} onto mux.
func (h *WorkflowHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/workflows", h.handleCollection)
	mux.HandleFunc("/workflows/", h.handleItem)
}

func (h *WorkflowHandler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
	}
}

func (h *WorkflowHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/workflows/")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "workflow id is required", h.logger)
		return
	}

	if rest, ok := strings.CutSuffix(id, "/export"); ok {
		if r.Method != http.MethodGet {
			WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
			return
		}
		h.export(w, r, rest)
		return
	}

	if id == "import" {
		if r.Method != http.MethodPost {
			WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
			return
		}
		h.importDAG(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
	}
}

// export serves the workflow's portable DAGDefinition shape as JSON
// (default) or YAML (?format=yaml), for download into an editor or a
// checked-in workflow file rather than the live Workflow record.
func (h *WorkflowHandler) export(w http.ResponseWriter, r *http.Request, id string) {
	wf, err := h.repo.GetWorkflow(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	def := wf.ToDAGDefinition()

	if r.URL.Query().Get("format") == "yaml" {
		yamlStr, err := def.ToYAML()
		if err != nil {
			WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(yamlStr))
		return
	}
	WriteSuccess(w, def)
}

// importDAG creates a workflow from a DAGDefinition body, the counterpart
// to export: a definition produced by one instance's GET .../export can be
// POSTed here to recreate the workflow (under a caller-supplied id) on
// another. ?format=yaml selects YAML, otherwise the body is JSON.
func (h *WorkflowHandler) importDAG(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         string `json:"id"`
		Definition string `json:"definition"`
	}
	if DecodeJSONBody(w, r, &req, h.logger) != nil {
		return
	}
	if req.ID == "" || req.Definition == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "id and definition are required", h.logger)
		return
	}

	var def *workflow.DAGDefinition
	var err error
	if r.URL.Query().Get("format") == "yaml" {
		def, err = workflow.FromYAML(req.Definition)
	} else {
		def, err = workflow.FromJSON(req.Definition)
	}
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}

	wf := def.ToWorkflow(req.ID)
	wf.CreatedAt = time.Now()
	wf.UpdatedAt = time.Now()
	if err := h.repo.CreateWorkflow(r.Context(), wf); err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, wrapSuccess(wf))
}

func (h *WorkflowHandler) list(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.repo.ListWorkflows(r.Context())
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, workflows)
}

func (h *WorkflowHandler) create(w http.ResponseWriter, r *http.Request) {
	var req api.CreateWorkflowRequest
	if DecodeJSONBody(w, r, &req, h.logger) != nil {
		return
	}
	if req.ID == "" || req.StartNode == "" || req.EndNode == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "id, startNode, and endNode are required", h.logger)
		return
	}

	wf := requestToWorkflow(&req)
	if err := workflow.Validate(wf); err != nil {
		WriteError(w, err.(*types.Error), h.logger)
		return
	}
	if err := h.repo.CreateWorkflow(r.Context(), wf); err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, wrapSuccess(wf))
}

func (h *WorkflowHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	wf, err := h.repo.GetWorkflow(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	WriteSuccess(w, wf)
}

func (h *WorkflowHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req api.UpdateWorkflowRequest
	if DecodeJSONBody(w, r, &req, h.logger) != nil {
		return
	}
	req.ID = id

	wf := requestToWorkflow(&req)
	if err := workflow.Validate(wf); err != nil {
		WriteError(w, err.(*types.Error), h.logger)
		return
	}
	if err := h.repo.UpdateWorkflow(r.Context(), wf); err != nil {
		h.writeLookupError(w, err)
		return
	}
	WriteSuccess(w, wf)
}

func (h *WorkflowHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.DeleteWorkflow(r.Context(), id); err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}

func (h *WorkflowHandler) writeLookupError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "not found") {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, err.Error(), h.logger)
		return
	}
	WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
}

func requestToWorkflow(req *api.CreateWorkflowRequest) *workflow.Workflow {
	return &workflow.Workflow{
		ID:              req.ID,
		Name:            req.Name,
		ParameterSchema: req.ParameterSchema,
		Nodes:           req.Nodes,
		Edges:           req.Edges,
		StartNode:       req.StartNode,
		EndNode:         req.EndNode,
		State:           req.State,
		MaxIterations:   req.MaxIterations,
		DefaultConfigID: req.DefaultConfigID,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func wrapSuccess(data any) any { return data }
