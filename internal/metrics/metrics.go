package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResolveAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr",
		Name:      "resolve_attempts_total",
		Help:      "Playback resolution attempts by terminal outcome.",
	}, []string{"outcome"})

	ProviderFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resolvr",
		Name:      "provider_fetch_duration_seconds",
		Help:      "Source provider fetch duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"provider"})

	PrecheckBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolvr",
		Name:      "precheck_batches_total",
		Help:      "Instant-availability batch calls by result.",
	}, []string{"result"})

	ResolutionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "resolvr",
		Name:      "resolutions_in_flight",
		Help:      "Number of debrid negotiations currently in progress.",
	})
)

// Register installs all collectors on the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ResolveAttemptsTotal,
		ProviderFetchDuration,
		PrecheckBatchesTotal,
		ResolutionsInFlight,
	)
}
