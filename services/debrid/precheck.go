package debrid

import (
	"context"
	"log"
	"regexp"
	"strings"

	"resolvr/internal/metrics"
	"resolvr/models"
)

var reInfoHash = regexp.MustCompile(`(?i)btih:([a-f0-9]{40}|[a-z2-7]{32})`)

// ExtractInfoHash pulls the info hash out of a magnet URI. The returned hash
// is lowercased; an empty string means no hash was found.
func ExtractInfoHash(magnetURI string) string {
	matches := reInfoHash.FindStringSubmatch(magnetURI)
	if len(matches) < 2 {
		return ""
	}
	return strings.ToLower(matches[1])
}

// availabilityChecker is the slice of the client the prechecker needs.
type availabilityChecker interface {
	HasCredential() bool
	InstantAvailability(ctx context.Context, hashes []string) (map[string]bool, error)
}

// Prechecker marks torrent candidates whose content is already cached on the
// acceleration service.
type Prechecker struct {
	client availabilityChecker
}

// NewPrechecker creates a cache prechecker backed by the given client.
func NewPrechecker(client availabilityChecker) *Prechecker {
	return &Prechecker{client: client}
}

// MarkCached sets Cached on every torrent candidate whose info hash the
// acceleration service reports as cached. Candidates are mutated in place.
// Without a credential the precheck is skipped and all candidates stay
// uncached. A failed availability batch degrades the same way: its hashes
// are treated as uncached rather than failing the whole resolution.
func (p *Prechecker) MarkCached(ctx context.Context, candidates []models.StreamCandidate) {
	if p == nil || p.client == nil || !p.client.HasCredential() {
		return
	}

	seen := make(map[string]bool)
	var hashes []string
	for _, c := range candidates {
		if c.Kind != models.KindTorrent {
			continue
		}
		hash := ExtractInfoHash(c.Locator)
		if hash == "" || seen[hash] {
			continue
		}
		seen[hash] = true
		hashes = append(hashes, hash)
	}
	if len(hashes) == 0 {
		return
	}

	cached := make(map[string]bool, len(hashes))
	for start := 0; start < len(hashes); start += availabilityBatchSize {
		end := start + availabilityBatchSize
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[start:end]
		result, err := p.client.InstantAvailability(ctx, batch)
		if err != nil {
			log.Printf("[debrid] availability batch failed, treating %d hashes as uncached: %v", len(batch), err)
			metrics.PrecheckBatchesTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.PrecheckBatchesTotal.WithLabelValues("ok").Inc()
		for hash, isCached := range result {
			if isCached {
				cached[hash] = true
			}
		}
	}

	marked := 0
	for i := range candidates {
		if candidates[i].Kind != models.KindTorrent {
			continue
		}
		if cached[ExtractInfoHash(candidates[i].Locator)] {
			candidates[i].Cached = true
			marked++
		}
	}
	log.Printf("[debrid] precheck: %d/%d unique hashes cached, %d candidates marked", len(cached), len(hashes), marked)
}
