package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sova-tungnv/web-ai/internal/store"
)

// SettingsStore is a key/value settings table. *store.SettingsRepository
// implements it.
type SettingsStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	All() (map[string]string, error)
}

// SettingsHandler exposes UI preferences such as the selected camera or
// the toolbox layout.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler creates a handler over s.
func NewSettingsHandler(s SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: s}
}

type settingRequest struct {
	Value *string `json:"value"`
}

type settingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ServeHTTP routes /api/settings and /api/settings/{key}.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/settings")
	key = strings.TrimPrefix(key, "/")

	if key == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		all, err := h.store.All()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list settings")
			return
		}
		writeJSON(w, http.StatusOK, all)
		return
	}

	switch r.Method {
	case http.MethodGet:
		value, err := h.store.Get(key)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Setting not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read setting")
			return
		}
		writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: value})
	case http.MethodPut:
		var req settingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
			writeError(w, http.StatusBadRequest, "Expected {\"value\": string}")
			return
		}
		if err := h.store.Set(key, *req.Value); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save setting")
			return
		}
		writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: *req.Value})
	case http.MethodDelete:
		if err := h.store.Delete(key); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to delete setting")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
