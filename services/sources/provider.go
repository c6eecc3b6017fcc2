package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"resolvr/models"
)

// ErrNotRegistered is returned by registry operations naming an unknown
// source id.
var ErrNotRegistered = errors.New("source not registered")

// FetchRequest identifies the title to find candidates for.
type FetchRequest struct {
	CatalogID string
	MediaType models.MediaType
	Season    int
	Episode   int
}

// Provider is a pluggable source of stream candidates. Implementations must
// be safe for concurrent use; Fetch failures are isolated by the fetcher.
type Provider interface {
	ID() string
	DisplayName() string
	Fetch(ctx context.Context, req FetchRequest) ([]models.StreamCandidate, error)
}

// Entry pairs a provider with its registry state.
type Entry struct {
	Provider Provider
	Priority int
	Enabled  bool
}

// enabledFlagStore persists the enabled flag outside the process. Implemented
// by the config manager.
type enabledFlagStore interface {
	SetSourceEnabled(id string, enabled bool) error
}

// Registry holds registered providers sorted by priority ascending.
// Membership is append-only; the enabled flag is the only mutable field.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	flags   enabledFlagStore
}

// NewRegistry constructs a registry. flags may be nil, in which case enabled
// toggles are kept in memory only.
func NewRegistry(flags enabledFlagStore) *Registry {
	return &Registry{flags: flags}
}

// Register adds a provider. Registering the same id twice is an error so a
// misconfiguration cannot cause duplicate fan-out.
func (r *Registry) Register(p Provider, priority int, enabled bool) error {
	if p == nil {
		return fmt.Errorf("nil provider")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Provider.ID() == p.ID() {
			return fmt.Errorf("source %q already registered", p.ID())
		}
	}
	r.entries = append(r.entries, Entry{Provider: p, Priority: priority, Enabled: enabled})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].Priority < r.entries[j].Priority
	})
	return nil
}

// SetEnabled toggles a provider and persists the flag.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].Provider.ID() == id {
			r.entries[i].Enabled = enabled
			if r.flags != nil {
				if err := r.flags.SetSourceEnabled(id, enabled); err != nil {
					return fmt.Errorf("persist enabled flag for %q: %w", id, err)
				}
			}
			return nil
		}
	}
	return fmt.Errorf("source %q: %w", id, ErrNotRegistered)
}

// List returns a snapshot of all entries in priority order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Get returns one entry by id.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Provider.ID() == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Enabled returns the enabled providers in priority order. The returned slice
// is a snapshot: a concurrent SetEnabled does not tear an in-flight fan-out.
func (r *Registry) Enabled() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, e := range r.entries {
		if e.Enabled {
			out = append(out, e.Provider)
		}
	}
	return out
}
