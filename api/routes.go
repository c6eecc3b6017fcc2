package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resolvr/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags every request with an X-Request-ID, honoring one
// supplied by the caller.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	playbackHandler *handlers.PlaybackHandler,
	sourcesHandler *handlers.SourcesHandler,
	registry *prometheus.Registry,
) {
	r.Use(corsMiddleware, requestIDMiddleware)

	apiRouter := r.PathPrefix("/api").Subrouter()

	apiRouter.HandleFunc("/playback/resolve", playbackHandler.Resolve).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/playback/prequeue", playbackHandler.Prequeue).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/playback/prequeue/{id}", playbackHandler.PrequeueStatus).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/playback/prequeue/{id}", playbackHandler.PrequeueCancel).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/sources", sourcesHandler.List).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/sources/{id}", sourcesHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/sources/{id}/enabled", sourcesHandler.SetEnabled).Methods(http.MethodPut, http.MethodOptions)

	apiRouter.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
