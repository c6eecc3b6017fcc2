package models

// QualityTier is the coarse resolution class parsed from a release title.
// The string values are stable and appear in serialized API responses.
type QualityTier string

const (
	Quality4K      QualityTier = "4K"
	Quality1080p   QualityTier = "1080p"
	Quality720p    QualityTier = "720p"
	Quality480p    QualityTier = "480p"
	QualityUnknown QualityTier = "Unknown"
)

// Weight returns the tier's position in the fixed total order, highest first.
func (q QualityTier) Weight() int {
	switch q {
	case Quality4K:
		return 4
	case Quality1080p:
		return 3
	case Quality720p:
		return 2
	case Quality480p:
		return 1
	default:
		return 0
	}
}

// CandidateKind distinguishes how a candidate's locator can be played.
type CandidateKind string

const (
	// KindTorrent is a magnet locator that needs debrid resolution.
	KindTorrent CandidateKind = "torrent"
	// KindAccelerated is an HTTP locator already hosted by an acceleration service.
	KindAccelerated CandidateKind = "accelerated"
	// KindDirect is a plain HTTP locator served by the source itself.
	KindDirect CandidateKind = "direct"
)

// MediaType mirrors the catalog's movie/series split.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// StreamCandidate is one offer of playable content from a source provider.
type StreamCandidate struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	DisplayTitle string        `json:"displayTitle"`
	Quality      QualityTier   `json:"quality"`
	Kind         CandidateKind `json:"kind"`
	Locator      string        `json:"locator"`
	SizeLabel    string        `json:"sizeLabel,omitempty"`
	Seeders      int           `json:"seeders,omitempty"`
	ProviderName string        `json:"providerName"`
	// Cached is only meaningful for torrent candidates after precheck.
	Cached bool `json:"cached"`
}

// ResolveOutcome is the caller-visible result of a playback resolution.
// Exactly one of URL or MagnetFallback is set: MagnetFallback carries the raw
// magnet when no acceleration credential is configured and the caller has to
// hand the torrent off externally.
type ResolveOutcome struct {
	Candidate      StreamCandidate `json:"candidate"`
	URL            string          `json:"url,omitempty"`
	MagnetFallback string          `json:"magnetFallback,omitempty"`
}
