package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"resolvr/models"
	"resolvr/services/playback"
	"resolvr/services/sources"
)

type playbackService interface {
	ResolvePlayback(ctx context.Context, req sources.FetchRequest) (*models.ResolveOutcome, error)
}

var _ playbackService = (*playback.Service)(nil)

// PlaybackHandler serves resolution and prequeue requests.
type PlaybackHandler struct {
	service   playbackService
	prequeuer *playback.Prequeuer
}

func NewPlaybackHandler(service playbackService, prequeuer *playback.Prequeuer) *PlaybackHandler {
	return &PlaybackHandler{service: service, prequeuer: prequeuer}
}

// ResolveRequest is the body of a playback resolution call.
type ResolveRequest struct {
	CatalogID string `json:"catalogId"`
	MediaType string `json:"mediaType"`
	Season    int    `json:"season,omitempty"`
	Episode   int    `json:"episode,omitempty"`
}

func (r *ResolveRequest) toFetchRequest() (sources.FetchRequest, error) {
	catalogID := strings.TrimSpace(r.CatalogID)
	if catalogID == "" {
		return sources.FetchRequest{}, errors.New("catalogId is required")
	}

	mediaType := models.MediaType(r.MediaType)
	switch mediaType {
	case models.MediaTypeMovie:
		if r.Season != 0 || r.Episode != 0 {
			return sources.FetchRequest{}, errors.New("season and episode are not valid for movies")
		}
	case models.MediaTypeSeries:
		if r.Season < 1 || r.Episode < 1 {
			return sources.FetchRequest{}, errors.New("series resolution requires season and episode")
		}
	default:
		return sources.FetchRequest{}, errors.New("mediaType must be movie or series")
	}

	return sources.FetchRequest{
		CatalogID: catalogID,
		MediaType: mediaType,
		Season:    r.Season,
		Episode:   r.Episode,
	}, nil
}

// Resolve runs the full pipeline for one catalog item and returns the outcome.
func (h *PlaybackHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var body ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req, err := body.toFetchRequest()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := h.service.ResolvePlayback(r.Context(), req)
	if err != nil {
		var exhausted *playback.ExhaustedError
		if errors.As(err, &exhausted) {
			writeJSONError(w, exhausted.Error(), http.StatusBadGateway)
			return
		}
		log.Printf("[handlers] resolve %s failed: %v", req.CatalogID, err)
		writeJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// Prequeue starts a background resolution and returns the prequeue ID.
func (h *PlaybackHandler) Prequeue(w http.ResponseWriter, r *http.Request) {
	var body ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req, err := body.toFetchRequest()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, h.prequeuer.Enqueue(req))
}

// PrequeueStatus returns the state of a previously started prequeue.
func (h *PlaybackHandler) PrequeueStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, ok := h.prequeuer.Get(id)
	if !ok {
		writeJSONError(w, "prequeue not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// PrequeueCancel removes a prequeue, canceling it if still running.
func (h *PlaybackHandler) PrequeueCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.prequeuer.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}
