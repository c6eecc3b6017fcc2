package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"resolvr/services/sources"
)

// SourcesHandler exposes the provider registry over HTTP.
type SourcesHandler struct {
	registry *sources.Registry
}

func NewSourcesHandler(registry *sources.Registry) *SourcesHandler {
	return &SourcesHandler{registry: registry}
}

// SourceInfo is the API representation of one registered provider.
type SourceInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
}

func toSourceInfo(e sources.Entry) SourceInfo {
	return SourceInfo{
		ID:          e.Provider.ID(),
		DisplayName: e.Provider.DisplayName(),
		Priority:    e.Priority,
		Enabled:     e.Enabled,
	}
}

// List returns all registered providers in priority order.
func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.List()
	out := make([]SourceInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSourceInfo(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one provider by id.
func (h *SourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, ok := h.registry.Get(id)
	if !ok {
		writeJSONError(w, "source not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toSourceInfo(entry))
}

// SetEnabled toggles a provider on or off and persists the flag.
func (h *SourcesHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeJSONError(w, "body must be {\"enabled\": true|false}", http.StatusBadRequest)
		return
	}

	if err := h.registry.SetEnabled(id, *body.Enabled); err != nil {
		if errors.Is(err, sources.ErrNotRegistered) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	entry, _ := h.registry.Get(id)
	writeJSON(w, http.StatusOK, toSourceInfo(entry))
}
