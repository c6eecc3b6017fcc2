package debrid

import (
	"context"
	"fmt"
	"testing"

	"resolvr/models"
)

func TestExtractInfoHash(t *testing.T) {
	tests := []struct {
		name   string
		magnet string
		want   string
	}{
		{
			name:   "hex hash lowercased",
			magnet: "magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01&dn=Movie",
			want:   "abcdef0123456789abcdef0123456789abcdef01",
		},
		{
			name:   "base32 hash",
			magnet: "magnet:?xt=urn:btih:MFRGGZDFMZTWQ2LKNNWG23TPOBYXE43U&dn=Show",
			want:   "mfrggzdfmztwq2lknnwg23tpobyxe43u",
		},
		{
			name:   "no hash",
			magnet: "https://example.test/stream.mp4",
			want:   "",
		},
		{
			name:   "truncated hash ignored",
			magnet: "magnet:?xt=urn:btih:abcdef",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractInfoHash(tt.magnet); got != tt.want {
				t.Fatalf("ExtractInfoHash(%q) = %q, want %q", tt.magnet, got, tt.want)
			}
		})
	}
}

type fakeAvailability struct {
	hasKey  bool
	batches [][]string
	cached  map[string]bool
	failOn  int // 1-based batch index that errors, 0 = never
}

func (f *fakeAvailability) HasCredential() bool { return f.hasKey }

func (f *fakeAvailability) InstantAvailability(_ context.Context, hashes []string) (map[string]bool, error) {
	batch := make([]string, len(hashes))
	copy(batch, hashes)
	f.batches = append(f.batches, batch)
	if f.failOn == len(f.batches) {
		return nil, fmt.Errorf("availability exploded")
	}
	out := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		out[h] = f.cached[h]
	}
	return out, nil
}

func torrentCandidate(i int) models.StreamCandidate {
	return models.StreamCandidate{
		ID:      fmt.Sprintf("cand-%d", i),
		Kind:    models.KindTorrent,
		Locator: fmt.Sprintf("magnet:?xt=urn:btih:%040x", i+1),
	}
}

func TestMarkCachedBatchesOfFifty(t *testing.T) {
	fake := &fakeAvailability{hasKey: true, cached: map[string]bool{}}
	var candidates []models.StreamCandidate
	for i := 0; i < 120; i++ {
		candidates = append(candidates, torrentCandidate(i))
	}

	NewPrechecker(fake).MarkCached(context.Background(), candidates)

	if len(fake.batches) != 3 {
		t.Fatalf("expected 3 availability batches, got %d", len(fake.batches))
	}
	sizes := []int{len(fake.batches[0]), len(fake.batches[1]), len(fake.batches[2])}
	if sizes[0] != 50 || sizes[1] != 50 || sizes[2] != 20 {
		t.Fatalf("expected batch sizes [50 50 20], got %v", sizes)
	}
}

func TestMarkCachedSetsFlagAndDedupes(t *testing.T) {
	hashA := ExtractInfoHash(torrentCandidate(0).Locator)
	fake := &fakeAvailability{hasKey: true, cached: map[string]bool{hashA: true}}

	candidates := []models.StreamCandidate{
		torrentCandidate(0),
		torrentCandidate(0), // duplicate hash, must not re-query
		torrentCandidate(1),
		{ID: "direct", Kind: models.KindDirect, Locator: "https://example.test/a.mp4"},
	}

	NewPrechecker(fake).MarkCached(context.Background(), candidates)

	if len(fake.batches) != 1 || len(fake.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 unique hashes, got %v", fake.batches)
	}
	if !candidates[0].Cached || !candidates[1].Cached {
		t.Fatalf("expected both duplicate-hash candidates marked cached")
	}
	if candidates[2].Cached || candidates[3].Cached {
		t.Fatalf("uncached torrent or direct candidate incorrectly marked")
	}
}

func TestMarkCachedDegradesOnBatchFailure(t *testing.T) {
	hashLate := ExtractInfoHash(torrentCandidate(60).Locator)
	fake := &fakeAvailability{hasKey: true, failOn: 1, cached: map[string]bool{hashLate: true}}

	var candidates []models.StreamCandidate
	for i := 0; i < 70; i++ {
		candidates = append(candidates, torrentCandidate(i))
	}

	NewPrechecker(fake).MarkCached(context.Background(), candidates)

	for i := 0; i < 50; i++ {
		if candidates[i].Cached {
			t.Fatalf("candidate %d from the failed batch should stay uncached", i)
		}
	}
	if !candidates[60].Cached {
		t.Fatalf("candidate from the successful second batch should be cached")
	}
}

func TestMarkCachedSkipsWithoutCredential(t *testing.T) {
	fake := &fakeAvailability{hasKey: false}
	candidates := []models.StreamCandidate{torrentCandidate(0)}

	NewPrechecker(fake).MarkCached(context.Background(), candidates)

	if len(fake.batches) != 0 {
		t.Fatalf("expected no availability calls without a credential, got %d", len(fake.batches))
	}
	if candidates[0].Cached {
		t.Fatalf("candidate must stay uncached without a credential")
	}
}
