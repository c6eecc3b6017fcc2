package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"resolvr/models"
	"resolvr/services/sources"
)

type fixedProvider struct {
	id   string
	name string
}

func (p *fixedProvider) ID() string          { return p.id }
func (p *fixedProvider) DisplayName() string { return p.name }
func (p *fixedProvider) Fetch(context.Context, sources.FetchRequest) ([]models.StreamCandidate, error) {
	return nil, nil
}

func newTestRegistry(t *testing.T) *sources.Registry {
	t.Helper()
	registry := sources.NewRegistry(nil)
	if err := registry.Register(&fixedProvider{id: "torrentio", name: "Torrentio"}, 0, true); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(&fixedProvider{id: "nyaa", name: "Nyaa"}, 1, false); err != nil {
		t.Fatal(err)
	}
	return registry
}

func TestSourcesListOrderedByPriority(t *testing.T) {
	h := NewSourcesHandler(newTestRegistry(t))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/sources", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []SourceInfo
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 2 || out[0].ID != "torrentio" || out[1].ID != "nyaa" {
		t.Fatalf("unexpected source list %+v", out)
	}
	if !out[0].Enabled || out[1].Enabled {
		t.Fatalf("enabled flags not reported: %+v", out)
	}
}

func TestSourcesSetEnabled(t *testing.T) {
	registry := newTestRegistry(t)
	h := NewSourcesHandler(registry)

	router := mux.NewRouter()
	router.HandleFunc("/api/sources/{id}/enabled", h.SetEnabled).Methods(http.MethodPut)

	req := httptest.NewRequest(http.MethodPut, "/api/sources/nyaa/enabled", strings.NewReader(`{"enabled":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	entry, _ := registry.Get("nyaa")
	if !entry.Enabled {
		t.Fatal("toggle did not reach the registry")
	}
}

func TestSourcesSetEnabledValidation(t *testing.T) {
	h := NewSourcesHandler(newTestRegistry(t))
	router := mux.NewRouter()
	router.HandleFunc("/api/sources/{id}/enabled", h.SetEnabled).Methods(http.MethodPut)

	// Missing enabled field.
	req := httptest.NewRequest(http.MethodPut, "/api/sources/nyaa/enabled", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing field, got %d", rec.Code)
	}

	// Unknown source.
	req = httptest.NewRequest(http.MethodPut, "/api/sources/ghost/enabled", strings.NewReader(`{"enabled":false}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown source, got %d", rec.Code)
	}
}
