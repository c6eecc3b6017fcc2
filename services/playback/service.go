package playback

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"resolvr/internal/metrics"
	"resolvr/models"
	"resolvr/services/sources"
)

// playableURLExtensions are the HTTP locator extensions the service will hand
// to a player without debrid involvement.
var playableURLExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".m3u8": true,
	".avi":  true,
	".mov":  true,
}

// ExhaustedError reports that every ranked candidate was tried and none
// produced a playable URL.
type ExhaustedError struct {
	// Attempted lists the distinct provider names tried, in first-seen order.
	Attempted []string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all candidates exhausted (providers tried: %s)", strings.Join(e.Attempted, ", "))
}

type candidateFetcher interface {
	FetchAll(ctx context.Context, req sources.FetchRequest) ([]models.StreamCandidate, error)
}

type cachePrechecker interface {
	MarkCached(ctx context.Context, candidates []models.StreamCandidate)
}

type torrentResolver interface {
	Resolve(ctx context.Context, magnetURI string) (string, error)
}

// Service runs the full playback pipeline: fetch candidates, precheck the
// acceleration cache, rank, then walk the ranked list until something plays.
type Service struct {
	fetcher       candidateFetcher
	prechecker    cachePrechecker
	resolver      torrentResolver
	hasCredential func() bool
	maxCandidates int
}

// NewService wires the playback pipeline. maxCandidates caps how many ranked
// candidates a single resolution may attempt; zero or negative means no cap.
func NewService(fetcher candidateFetcher, prechecker cachePrechecker, resolver torrentResolver, hasCredential func() bool, maxCandidates int) *Service {
	return &Service{
		fetcher:       fetcher,
		prechecker:    prechecker,
		resolver:      resolver,
		hasCredential: hasCredential,
		maxCandidates: maxCandidates,
	}
}

// ResolvePlayback runs the pipeline end to end for one catalog item.
func (s *Service) ResolvePlayback(ctx context.Context, req sources.FetchRequest) (*models.ResolveOutcome, error) {
	candidates, err := s.fetcher.FetchAll(ctx, req)
	if err != nil {
		metrics.ResolveAttemptsTotal.WithLabelValues("fetch_error").Inc()
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		log.Printf("[playback] %s: no candidates from any provider", req.CatalogID)
	}

	s.prechecker.MarkCached(ctx, candidates)
	Rank(candidates)

	if s.maxCandidates > 0 && len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}
	log.Printf("[playback] %s: attempting up to %d ranked candidate(s)", req.CatalogID, len(candidates))

	return s.ResolveBest(ctx, candidates)
}

// ResolveBest walks the ranked candidates in order and returns the first
// playable outcome. Torrent candidates without an acceleration credential end
// the walk with a magnet fallback instead of an error.
func (s *Service) ResolveBest(ctx context.Context, candidates []models.StreamCandidate) (*models.ResolveOutcome, error) {
	var attempted []string
	seenProvider := make(map[string]bool)
	note := func(c models.StreamCandidate) {
		if c.ProviderName != "" && !seenProvider[c.ProviderName] {
			seenProvider[c.ProviderName] = true
			attempted = append(attempted, c.ProviderName)
		}
	}

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		note(candidate)

		switch candidate.Kind {
		case models.KindDirect, models.KindAccelerated:
			if !isPlayableURL(candidate.Locator) {
				log.Printf("[playback] skipping %s: locator is not directly playable", candidate.ID)
				continue
			}
			metrics.ResolveAttemptsTotal.WithLabelValues("direct").Inc()
			return &models.ResolveOutcome{Candidate: candidate, URL: candidate.Locator}, nil

		case models.KindTorrent:
			if !s.hasCredential() {
				log.Printf("[playback] no acceleration credential, handing back magnet for %s", candidate.ID)
				metrics.ResolveAttemptsTotal.WithLabelValues("magnet_fallback").Inc()
				return &models.ResolveOutcome{Candidate: candidate, MagnetFallback: candidate.Locator}, nil
			}
			url, err := s.resolver.Resolve(ctx, candidate.Locator)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Printf("[playback] candidate %s failed: %v", candidate.ID, err)
				continue
			}
			metrics.ResolveAttemptsTotal.WithLabelValues("resolved").Inc()
			return &models.ResolveOutcome{Candidate: candidate, URL: url}, nil

		default:
			log.Printf("[playback] skipping %s: unknown kind %q", candidate.ID, candidate.Kind)
		}
	}

	metrics.ResolveAttemptsTotal.WithLabelValues("exhausted").Inc()
	return nil, &ExhaustedError{Attempted: attempted}
}

func isPlayableURL(rawURL string) bool {
	trimmed := rawURL
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return playableURLExtensions[strings.ToLower(filepath.Ext(trimmed))]
}
