package playback

import (
	"sort"

	"resolvr/models"
)

// Rank orders candidates for resolution: cached torrents first, then quality
// tier descending, then seeders descending. The sort is stable so candidates
// that tie on all three keys keep their merged provider-priority order.
func Rank(candidates []models.StreamCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Cached != b.Cached {
			return a.Cached
		}
		if aw, bw := a.Quality.Weight(), b.Quality.Weight(); aw != bw {
			return aw > bw
		}
		return a.Seeders > b.Seeders
	})
}
