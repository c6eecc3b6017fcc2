package debrid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"resolvr/internal/metrics"
)

// Resolution failure reasons.
const (
	ReasonAddError        = "add_error"
	ReasonNotCached       = "not_cached"
	ReasonTorrentError    = "torrent_error"
	ReasonTimeout         = "timeout"
	ReasonUnrestrictError = "unrestrict_error"
	ReasonNoPlayableLinks = "no_playable_links"
	ReasonCanceled        = "canceled"
)

// ResolveError describes why a torrent could not be resolved to a playable
// URL. TorrentID is empty when the magnet was never accepted.
type ResolveError struct {
	Reason    string
	TorrentID string
	Err       error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve failed (%s)", e.Reason)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Clock abstracts timer waits so tests can run the polling loops instantly.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Polling schedule for the two resolution phases.
const (
	infoPollInterval = 500 * time.Millisecond
	infoPollAttempts = 10
	linkPollInterval = 2 * time.Second
	linkPollAttempts = 30
	selectionSettle  = 1 * time.Second
)

var playableExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".webm": true,
	".m4v":  true,
	".ts":   true,
	".m2ts": true,
}

var archiveExtensions = map[string]bool{
	".iso": true,
	".rar": true,
	".zip": true,
	".7z":  true,
	".tar": true,
	".gz":  true,
}

// torrentService is the slice of the client the resolver drives.
type torrentService interface {
	AddMagnet(ctx context.Context, magnetURI string) (*AddMagnetResult, error)
	TorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error)
	SelectFiles(ctx context.Context, torrentID, fileIDs string) error
	UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error)
	DeleteTorrent(ctx context.Context, torrentID string) error
}

// Resolver drives a magnet through the acceleration service until it yields a
// direct playable URL.
type Resolver struct {
	service torrentService
	clock   Clock
}

// NewResolver creates a resolver on top of the given acceleration client.
func NewResolver(service torrentService) *Resolver {
	return &Resolver{service: service, clock: realClock{}}
}

// SetClock replaces the resolver's timer source. Test hook.
func (r *Resolver) SetClock(clock Clock) {
	r.clock = clock
}

// Resolve submits the magnet and walks it to a playable direct URL. Any
// failure after the magnet was accepted deletes the remote torrent before
// returning, except unrestrict failures and missing playable links where the
// torrent state itself is healthy. All failures return a *ResolveError.
func (r *Resolver) Resolve(ctx context.Context, magnetURI string) (string, error) {
	metrics.ResolutionsInFlight.Inc()
	defer metrics.ResolutionsInFlight.Dec()

	added, err := r.service.AddMagnet(ctx, magnetURI)
	if err != nil {
		return "", &ResolveError{Reason: ReasonAddError, Err: err}
	}
	torrentID := added.ID

	info, rerr := r.waitForFiles(ctx, torrentID)
	if rerr != nil {
		r.cleanup(torrentID)
		return "", rerr
	}

	// An already-downloaded torrent has its selection done; re-submitting one
	// makes the service reject the action.
	if info.Status != StatusDownloaded {
		if rerr := r.selectPlayableFiles(ctx, torrentID, info); rerr != nil {
			r.cleanup(torrentID)
			return "", rerr
		}

		// Give the service a moment to register the selection before polling.
		if err := r.wait(ctx, selectionSettle); err != nil {
			r.cleanup(torrentID)
			return "", &ResolveError{Reason: ReasonCanceled, TorrentID: torrentID, Err: err}
		}
	}

	links := info.Links
	if info.Status != StatusDownloaded || len(links) == 0 {
		links, rerr = r.waitForLinks(ctx, torrentID)
		if rerr != nil {
			r.cleanup(torrentID)
			return "", rerr
		}
	}

	playable := filterArchiveLinks(links)
	if len(playable) == 0 {
		return "", &ResolveError{Reason: ReasonNoPlayableLinks, TorrentID: torrentID}
	}

	unrestricted, err := r.service.UnrestrictLink(ctx, playable[0])
	if err != nil {
		return "", &ResolveError{Reason: ReasonUnrestrictError, TorrentID: torrentID, Err: err}
	}
	if isArchiveURL(unrestricted.Download) {
		return "", &ResolveError{Reason: ReasonNoPlayableLinks, TorrentID: torrentID,
			Err: fmt.Errorf("direct URL points at an archive: %s", unrestricted.Download)}
	}

	log.Printf("[debrid] resolved torrent %s to playable URL", torrentID)
	return unrestricted.Download, nil
}

// waitForFiles polls torrent info until the file list is available. A torrent
// that is already downloaded is returned as-is so the caller can skip file
// selection.
func (r *Resolver) waitForFiles(ctx context.Context, torrentID string) (*TorrentInfo, *ResolveError) {
	for attempt := 0; attempt < infoPollAttempts; attempt++ {
		if attempt > 0 {
			if err := r.wait(ctx, infoPollInterval); err != nil {
				return nil, &ResolveError{Reason: ReasonCanceled, TorrentID: torrentID, Err: err}
			}
		}

		info, err := r.service.TorrentInfo(ctx, torrentID)
		if err != nil {
			if errors.Is(err, ErrNotAccepted) {
				return nil, &ResolveError{Reason: ReasonNotCached, TorrentID: torrentID, Err: err}
			}
			if ctx.Err() != nil {
				return nil, &ResolveError{Reason: ReasonCanceled, TorrentID: torrentID, Err: err}
			}
			return nil, &ResolveError{Reason: ReasonTorrentError, TorrentID: torrentID, Err: err}
		}

		if isTerminalFailure(info.Status) {
			return nil, &ResolveError{Reason: ReasonTorrentError, TorrentID: torrentID,
				Err: fmt.Errorf("torrent entered status %q", info.Status)}
		}
		if info.Status == StatusDownloaded || len(info.Files) > 0 {
			return info, nil
		}
	}
	return nil, &ResolveError{Reason: ReasonTimeout, TorrentID: torrentID,
		Err: fmt.Errorf("file list not available after %d polls", infoPollAttempts)}
}

// selectPlayableFiles picks the largest unselected playable file, or falls
// back to selecting everything when nothing matches.
func (r *Resolver) selectPlayableFiles(ctx context.Context, torrentID string, info *TorrentInfo) *ResolveError {
	selection := "all"
	var best *File
	for i := range info.Files {
		f := &info.Files[i]
		if f.Selected != 0 {
			continue
		}
		if !playableExtensions[strings.ToLower(filepath.Ext(f.Path))] {
			continue
		}
		if best == nil || f.Bytes > best.Bytes {
			best = f
		}
	}
	if best != nil {
		selection = strconv.Itoa(best.ID)
	}

	if err := r.service.SelectFiles(ctx, torrentID, selection); err != nil {
		if ctx.Err() != nil {
			return &ResolveError{Reason: ReasonCanceled, TorrentID: torrentID, Err: err}
		}
		return &ResolveError{Reason: ReasonTorrentError, TorrentID: torrentID, Err: err}
	}
	return nil
}

// waitForLinks polls until the torrent is downloaded and has hoster links.
func (r *Resolver) waitForLinks(ctx context.Context, torrentID string) ([]string, *ResolveError) {
	for attempt := 0; attempt < linkPollAttempts; attempt++ {
		if attempt > 0 {
			if err := r.wait(ctx, linkPollInterval); err != nil {
				return nil, &ResolveError{Reason: ReasonCanceled, TorrentID: torrentID, Err: err}
			}
		}

		info, err := r.service.TorrentInfo(ctx, torrentID)
		if err != nil {
			if errors.Is(err, ErrNotAccepted) {
				return nil, &ResolveError{Reason: ReasonNotCached, TorrentID: torrentID, Err: err}
			}
			if ctx.Err() != nil {
				return nil, &ResolveError{Reason: ReasonCanceled, TorrentID: torrentID, Err: err}
			}
			return nil, &ResolveError{Reason: ReasonTorrentError, TorrentID: torrentID, Err: err}
		}

		if isTerminalFailure(info.Status) {
			return nil, &ResolveError{Reason: ReasonTorrentError, TorrentID: torrentID,
				Err: fmt.Errorf("torrent entered status %q", info.Status)}
		}
		if info.Status == StatusDownloaded && len(info.Links) > 0 {
			return info.Links, nil
		}
	}
	return nil, &ResolveError{Reason: ReasonTimeout, TorrentID: torrentID,
		Err: fmt.Errorf("links not available after %d polls", linkPollAttempts)}
}

// wait blocks for d or until ctx is canceled.
func (r *Resolver) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(d):
		return nil
	}
}

// cleanup deletes the remote torrent on a best-effort basis. It runs on a
// fresh context because the request's context may already be canceled.
func (r *Resolver) cleanup(torrentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.service.DeleteTorrent(ctx, torrentID); err != nil {
		log.Printf("[debrid] cleanup delete of torrent %s failed: %v", torrentID, err)
	}
}

func isTerminalFailure(status string) bool {
	switch status {
	case StatusMagnetError, StatusError, StatusVirus, StatusDead:
		return true
	}
	return false
}

func filterArchiveLinks(links []string) []string {
	var out []string
	for _, link := range links {
		if !isArchiveURL(link) {
			out = append(out, link)
		}
	}
	return out
}

func isArchiveURL(rawURL string) bool {
	trimmed := rawURL
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return archiveExtensions[strings.ToLower(filepath.Ext(trimmed))]
}
