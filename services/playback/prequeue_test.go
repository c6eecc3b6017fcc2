package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"resolvr/models"
	"resolvr/services/sources"
)

type scriptedResolver struct {
	outcome *models.ResolveOutcome
	err     error
	delay   time.Duration
}

func (s *scriptedResolver) ResolvePlayback(_ context.Context, _ sources.FetchRequest) (*models.ResolveOutcome, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.outcome, s.err
}

func waitForStatus(t *testing.T, p *Prequeuer, id string, want PrequeueStatus) *PrequeueStatusResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if status, ok := p.Get(id); ok && status.Status == want {
			return status
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("prequeue %s never reached status %s", id, want)
	return nil
}

func TestPrequeuerResolvesInBackground(t *testing.T) {
	resolver := &scriptedResolver{outcome: &models.ResolveOutcome{
		Candidate: models.StreamCandidate{ID: "c1"},
		URL:       "https://cdn.test/movie.mkv",
	}}
	p := NewPrequeuer(resolver, time.Minute)

	created := p.Enqueue(sources.FetchRequest{CatalogID: "tt1", MediaType: models.MediaTypeMovie})
	ready := waitForStatus(t, p, created.PrequeueID, PrequeueStatusReady)

	if ready.Outcome == nil || ready.Outcome.URL != "https://cdn.test/movie.mkv" {
		t.Fatalf("expected cached outcome, got %+v", ready.Outcome)
	}
	if ready.Error != "" {
		t.Fatalf("unexpected error on ready prequeue: %s", ready.Error)
	}
}

func TestPrequeuerRecordsFailure(t *testing.T) {
	resolver := &scriptedResolver{err: errors.New("no candidates")}
	p := NewPrequeuer(resolver, time.Minute)

	created := p.Enqueue(sources.FetchRequest{CatalogID: "tt2", MediaType: models.MediaTypeMovie})
	failed := waitForStatus(t, p, created.PrequeueID, PrequeueStatusFailed)

	if failed.Error == "" {
		t.Fatal("expected the failure reason to be recorded")
	}
}

func TestPrequeuerReplacesSameItem(t *testing.T) {
	resolver := &scriptedResolver{outcome: &models.ResolveOutcome{URL: "https://cdn.test/a.mkv"}}
	p := NewPrequeuer(resolver, time.Minute)

	req := sources.FetchRequest{CatalogID: "tt3", MediaType: models.MediaTypeSeries, Season: 1, Episode: 2}
	first := p.Enqueue(req)
	second := p.Enqueue(req)

	if first.PrequeueID == second.PrequeueID {
		t.Fatal("replacement must mint a new prequeue ID")
	}
	if _, ok := p.Get(first.PrequeueID); ok {
		t.Fatal("replaced entry must be gone")
	}
	if current, ok := p.GetByItem(req); !ok || current.PrequeueID != second.PrequeueID {
		t.Fatalf("item index must point at the replacement, got %+v", current)
	}
}

func TestPrequeuerStatusReadsDuringResolution(t *testing.T) {
	// Hot status polling while the background goroutine transitions the entry;
	// snapshots must never expose the entry's fields mid-write (run with the
	// race detector).
	resolver := &scriptedResolver{
		outcome: &models.ResolveOutcome{URL: "https://cdn.test/b.mkv"},
		delay:   5 * time.Millisecond,
	}
	p := NewPrequeuer(resolver, time.Minute)

	created := p.Enqueue(sources.FetchRequest{CatalogID: "tt4", MediaType: models.MediaTypeMovie})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		status, ok := p.Get(created.PrequeueID)
		if !ok {
			t.Fatal("entry disappeared during resolution")
		}
		if status.Status == PrequeueStatusReady {
			if status.Outcome == nil || status.Outcome.URL != "https://cdn.test/b.mkv" {
				t.Fatalf("ready snapshot missing outcome: %+v", status)
			}
			return
		}
	}
	t.Fatal("prequeue never became ready")
}
