package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Debrid   DebridSettings   `json:"debrid"`
	Sources  []SourceConfig   `json:"sources"`
	Playback PlaybackSettings `json:"playback"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DebridSettings holds the acceleration-service credential. An empty APIKey
// disables cache prechecks and torrent resolution (magnets are surfaced raw).
type DebridSettings struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// SourceConfig describes one registered source provider.
type SourceConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"` // "streamlist" | "torznab"
	URL      string `json:"url,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	Options  string `json:"options,omitempty"` // streamlist URL path options, e.g. "sort=qualitysize"
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

type PlaybackSettings struct {
	MaxCandidates int `json:"maxCandidates"`
}

// LogConfig controls file logging with rotation.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8580,
		},
		Debrid: DebridSettings{},
		Sources: []SourceConfig{
			{
				ID:       "torrentio",
				Name:     "Torrentio",
				Type:     "streamlist",
				Priority: 0,
				Enabled:  true,
			},
		},
		Playback: PlaybackSettings{
			MaxCandidates: 40,
		},
		Log: LogConfig{
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	if s.Playback.MaxCandidates <= 0 {
		s.Playback.MaxCandidates = DefaultSettings().Playback.MaxCandidates
	}
	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}

// SetSourceEnabled toggles one source's enabled flag and persists the change.
func (m *Manager) SetSourceEnabled(id string, enabled bool) error {
	s, err := m.Load()
	if err != nil {
		return err
	}
	for i := range s.Sources {
		if strings.EqualFold(s.Sources[i].ID, id) {
			s.Sources[i].Enabled = enabled
			return m.Save(s)
		}
	}
	return fmt.Errorf("source %q not found in settings", id)
}
