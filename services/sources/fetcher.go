package sources

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"resolvr/internal/metrics"
	"resolvr/models"
)

// Fetcher fans out to all enabled providers concurrently and merges results
// in provider-priority order.
type Fetcher struct {
	registry *Registry
}

func NewFetcher(registry *Registry) *Fetcher {
	return &Fetcher{registry: registry}
}

// FetchAll queries every enabled provider and waits for all of them to settle.
// A provider error or panic yields an empty list for that provider only, never
// an error for the batch: even with every provider down the merge settles to
// an empty list and the caller reports exhaustion. Results keep
// provider-priority order regardless of completion order, and candidates
// without a locator are discarded.
func (f *Fetcher) FetchAll(ctx context.Context, req FetchRequest) ([]models.StreamCandidate, error) {
	providers := f.registry.Enabled()
	if len(providers) == 0 {
		return nil, nil
	}

	results := make([][]models.StreamCandidate, len(providers))
	errs := make([]error, len(providers))

	var wg conc.WaitGroup
	for i, p := range providers {
		i, p := i, p
		wg.Go(func() {
			start := time.Now()
			recovered := panics.Try(func() {
				candidates, err := p.Fetch(ctx, req)
				if err != nil {
					errs[i] = fmt.Errorf("%s: %w", p.ID(), err)
					return
				}
				results[i] = candidates
			})
			metrics.ProviderFetchDuration.WithLabelValues(p.ID()).Observe(time.Since(start).Seconds())
			if recovered != nil {
				errs[i] = fmt.Errorf("%s: panic: %v", p.ID(), recovered.Value)
			}
		})
	}
	wg.Wait()

	var merged []models.StreamCandidate
	for i, p := range providers {
		if errs[i] != nil {
			log.Printf("[sources] %s fetch failed: %v", p.ID(), errs[i])
			continue
		}
		kept := 0
		for _, c := range results[i] {
			if strings.TrimSpace(c.Locator) == "" {
				continue
			}
			merged = append(merged, c)
			kept++
		}
		log.Printf("[sources] %s returned %d candidate(s), kept %d", p.ID(), len(results[i]), kept)
	}
	return merged, nil
}
