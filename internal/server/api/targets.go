package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/logger"
	"github.com/sova-tungnv/web-ai/internal/store"
)

// TargetStore persists registered targets. *store.TargetRepository
// implements it.
type TargetStore interface {
	Save(t gesture.Target) error
	Delete(id string) error
}

// TargetHandler lets the UI register toolbox templates and canvas instances
// with the interpreter's registry.
type TargetHandler struct {
	registry *gesture.Registry
	store    TargetStore
}

// NewTargetHandler creates a handler over registry. s may be nil.
func NewTargetHandler(registry *gesture.Registry, s TargetStore) *TargetHandler {
	return &TargetHandler{registry: registry, store: s}
}

// ServeHTTP routes /api/targets and /api/targets/{id}.
func (h *TargetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/targets")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createTargetRequest struct {
	ID     string       `json:"id"`
	Pool   gesture.Pool `json:"pool"`
	Label  string       `json:"label"`
	Bounds gesture.Rect `json:"bounds"`
}

type listTargetsResponse struct {
	Targets []gesture.Target `json:"targets"`
}

// list handles GET /api/targets, templates first.
func (h *TargetHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listTargetsResponse{Targets: h.registry.List()})
}

// get handles GET /api/targets/{id}.
func (h *TargetHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	t, ok := h.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Target not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// create handles POST /api/targets.
func (h *TargetHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Pool == "" {
		req.Pool = gesture.PoolInstance
	}

	t, err := h.registry.Register(gesture.Target{
		ID:     req.ID,
		Pool:   req.Pool,
		Label:  req.Label,
		Bounds: req.Bounds,
	})
	switch {
	case errors.Is(err, gesture.ErrDuplicateTarget):
		writeError(w, http.StatusConflict, "Target already registered")
		return
	case errors.Is(err, gesture.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to register target")
		return
	}

	if h.store != nil {
		if err := h.store.Save(t); err != nil {
			logger.For("api").Warn("persist target", "target", t.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, t)
}

// delete handles DELETE /api/targets/{id}.
func (h *TargetHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.registry.Remove(id); err != nil {
		if errors.Is(err, gesture.ErrTargetNotFound) {
			writeError(w, http.StatusNotFound, "Target not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to remove target")
		return
	}

	if h.store != nil {
		if err := h.store.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.For("api").Warn("delete stored target", "target", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
