package playback

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"resolvr/models"
	"resolvr/services/sources"
)

// PrequeueStatus represents the current state of a prequeue request
type PrequeueStatus string

const (
	PrequeueStatusQueued    PrequeueStatus = "queued"
	PrequeueStatusResolving PrequeueStatus = "resolving"
	PrequeueStatusReady     PrequeueStatus = "ready"
	PrequeueStatusFailed    PrequeueStatus = "failed"
)

// PrequeueEntry is the internal state of a prequeue item
type PrequeueEntry struct {
	ID        string
	CatalogID string
	MediaType models.MediaType
	Season    int
	Episode   int

	Status  PrequeueStatus
	Outcome *models.ResolveOutcome
	Error   string

	CreatedAt time.Time
	ExpiresAt time.Time

	cancelFunc context.CancelFunc
}

// PrequeueStatusResponse is the caller-visible status of a prequeue entry
type PrequeueStatusResponse struct {
	PrequeueID string                 `json:"prequeueId"`
	Status     PrequeueStatus         `json:"status"`
	Outcome    *models.ResolveOutcome `json:"outcome,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// toResponse snapshots an entry. Callers must hold the prequeuer's lock: the
// run goroutine mutates Status, Outcome and Error under the write lock.
func (e *PrequeueEntry) toResponse() *PrequeueStatusResponse {
	return &PrequeueStatusResponse{
		PrequeueID: e.ID,
		Status:     e.Status,
		Outcome:    e.Outcome,
		Error:      e.Error,
	}
}

// playbackResolver is what the prequeuer runs in the background.
type playbackResolver interface {
	ResolvePlayback(ctx context.Context, req sources.FetchRequest) (*models.ResolveOutcome, error)
}

// Prequeuer resolves catalog items ahead of time and holds the outcomes with
// a TTL, so a playback request that follows shortly after can skip the whole
// pipeline.
type Prequeuer struct {
	mu      sync.RWMutex
	entries map[string]*PrequeueEntry
	// Secondary index: catalog item key -> prequeue ID (to replace an
	// in-flight prequeue for the same item).
	byItem  map[string]string
	ttl     time.Duration
	service playbackResolver
}

// NewPrequeuer creates a prequeuer with the given entry TTL and starts its
// cleanup loop.
func NewPrequeuer(service playbackResolver, ttl time.Duration) *Prequeuer {
	p := &Prequeuer{
		entries: make(map[string]*PrequeueEntry),
		byItem:  make(map[string]string),
		ttl:     ttl,
		service: service,
	}
	go p.cleanupLoop()
	return p
}

func generatePrequeueID() string {
	return fmt.Sprintf("pq_%d", time.Now().UnixNano())
}

func itemKey(req sources.FetchRequest) string {
	return fmt.Sprintf("%s:%s:%d:%d", req.CatalogID, req.MediaType, req.Season, req.Episode)
}

// Enqueue starts a background resolution for the given item and returns a
// snapshot of the new entry. An existing prequeue for the same item is
// canceled and replaced.
func (p *Prequeuer) Enqueue(req sources.FetchRequest) *PrequeueStatusResponse {
	p.mu.Lock()

	key := itemKey(req)
	if existingID, exists := p.byItem[key]; exists {
		if existing, ok := p.entries[existingID]; ok {
			if existing.cancelFunc != nil {
				existing.cancelFunc()
			}
			delete(p.entries, existingID)
			log.Printf("[prequeue] replaced existing prequeue %s for %s", existingID, key)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	entry := &PrequeueEntry{
		ID:         generatePrequeueID(),
		CatalogID:  req.CatalogID,
		MediaType:  req.MediaType,
		Season:     req.Season,
		Episode:    req.Episode,
		Status:     PrequeueStatusQueued,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(p.ttl),
		cancelFunc: cancel,
	}
	p.entries[entry.ID] = entry
	p.byItem[key] = entry.ID
	resp := entry.toResponse()
	p.mu.Unlock()

	log.Printf("[prequeue] created prequeue %s for %s", resp.PrequeueID, key)
	go p.run(ctx, resp.PrequeueID, req)
	return resp
}

func (p *Prequeuer) run(ctx context.Context, id string, req sources.FetchRequest) {
	p.update(id, func(e *PrequeueEntry) { e.Status = PrequeueStatusResolving })

	outcome, err := p.service.ResolvePlayback(ctx, req)
	if err != nil {
		p.update(id, func(e *PrequeueEntry) {
			e.Status = PrequeueStatusFailed
			e.Error = err.Error()
		})
		log.Printf("[prequeue] %s failed: %v", id, err)
		return
	}

	p.update(id, func(e *PrequeueEntry) {
		e.Status = PrequeueStatusReady
		e.Outcome = outcome
	})
	log.Printf("[prequeue] %s ready", id)
}

// Get retrieves a snapshot of a prequeue entry by ID. Expired entries are not
// returned. A snapshot rather than the entry itself crosses the lock boundary
// so callers never observe the run goroutine's writes mid-flight.
func (p *Prequeuer) Get(id string) (*PrequeueStatusResponse, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, exists := p.entries[id]
	if !exists || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.toResponse(), true
}

// GetByItem retrieves a snapshot of the current prequeue for a catalog item.
func (p *Prequeuer) GetByItem(req sources.FetchRequest) (*PrequeueStatusResponse, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, exists := p.byItem[itemKey(req)]
	if !exists {
		return nil, false
	}
	entry, exists := p.entries[id]
	if !exists || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.toResponse(), true
}

// Delete removes a prequeue entry, canceling it if still running.
func (p *Prequeuer) Delete(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(id)
}

func (p *Prequeuer) update(id string, fn func(*PrequeueEntry)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, exists := p.entries[id]
	if !exists {
		return
	}
	fn(entry)
	// A ready outcome gets a fresh TTL window.
	if entry.Status == PrequeueStatusReady {
		entry.ExpiresAt = time.Now().Add(p.ttl)
	}
}

func (p *Prequeuer) removeLocked(id string) {
	entry, exists := p.entries[id]
	if !exists {
		return
	}
	if entry.cancelFunc != nil {
		entry.cancelFunc()
	}
	key := fmt.Sprintf("%s:%s:%d:%d", entry.CatalogID, entry.MediaType, entry.Season, entry.Episode)
	if p.byItem[key] == id {
		delete(p.byItem, key)
	}
	delete(p.entries, id)
}

func (p *Prequeuer) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		p.cleanup()
	}
}

func (p *Prequeuer) cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for id, entry := range p.entries {
		if now.After(entry.ExpiresAt) {
			p.removeLocked(id)
			log.Printf("[prequeue] expired and removed prequeue %s", id)
		}
	}
}
