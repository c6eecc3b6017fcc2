package config

import (
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "settings.json")
	m := NewManager(path)

	s, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Server.Port == 0 {
		t.Fatalf("expected default port, got 0")
	}
	if len(s.Sources) == 0 {
		t.Fatalf("expected at least one default source")
	}

	// Second load must read the persisted file, not re-create it.
	again, err := m.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Server.Port != s.Server.Port {
		t.Fatalf("reload mismatch: %d != %d", again.Server.Port, s.Server.Port)
	}
}

func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)

	s := DefaultSettings()
	s.Debrid.APIKey = "token-123"
	s.Sources = append(s.Sources, SourceConfig{
		ID: "jackett", Name: "Jackett", Type: "torznab", URL: "http://localhost:9117", Priority: 5, Enabled: false,
	})
	if err := m.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Debrid.APIKey != "token-123" {
		t.Fatalf("api key not persisted, got %q", loaded.Debrid.APIKey)
	}
	if len(loaded.Sources) != 2 || loaded.Sources[1].ID != "jackett" {
		t.Fatalf("sources not persisted: %+v", loaded.Sources)
	}
}

func TestSetSourceEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	if err := m.SetSourceEnabled("torrentio", false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	s, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Sources[0].Enabled {
		t.Fatalf("expected torrentio disabled after toggle")
	}

	if err := m.SetSourceEnabled("nope", true); err == nil {
		t.Fatalf("expected error for unknown source id")
	}
}
