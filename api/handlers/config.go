package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/internal/configstore"
	"github.com/BaSui01/agentflow/types"
)

// ConfigStore is the persistence surface ConfigHandler needs: get, set, and
// delete a named variable bundle. Satisfied by *configstore.Store.
type ConfigStore interface {
	GetVariables(ctx context.Context, configID string) (map[string]any, error)
	SetVariables(ctx context.Context, configID string, vars map[string]any) error
	DeleteVariables(ctx context.Context, configID string) error
}

// ConfigHandler serves CRUD operations under /configs: each resource is a
// configId and its associated variable bundle, the thing a workflow's
// defaultConfigId or an execution's configId resolves to at dispatch time.
// There is no collection-level GET: the underlying configstore.Store is a
// plain cache keyed by configId with no enumeration support, so listing
// every stored bundle isn't offered (matches the store's own surface).
type ConfigHandler struct {
	store  ConfigStore
	logger *zap.Logger
}

func NewConfigHandler(store ConfigStore, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{store: store, logger: logger.With(zap.String("component", "config_handler"))}
}

// RegisterRoutes wires /configs/{id} onto mux. Nothing is registered at the
// bare /configs collection path since creation requires a caller-chosen id.
func (h *ConfigHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/configs/", h.handleItem)
}

func (h *ConfigHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/configs/")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "config id is required", h.logger)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPost, http.MethodPut:
		h.set(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
	}
}

func (h *ConfigHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	vars, err := h.store.GetVariables(r.Context(), id)
	if err != nil {
		if errors.Is(err, configstore.ErrConfigNotFound) {
			WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, err.Error(), h.logger)
			return
		}
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"configId": id, "variables": vars})
}

// set creates or fully replaces the variable bundle for id. POST and PUT are
// equivalent here: the store has no separate create-must-not-exist check,
// since a configId is a caller-chosen name rather than a generated one.
func (h *ConfigHandler) set(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Variables map[string]any `json:"variables"`
	}
	if DecodeJSONBody(w, r, &req, h.logger) != nil {
		return
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	if err := h.store.SetVariables(r.Context(), id, req.Variables); err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"configId": id, "variables": req.Variables})
}

func (h *ConfigHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.DeleteVariables(r.Context(), id); err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}
