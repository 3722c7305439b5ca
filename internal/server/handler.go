// Package server exposes the library over HTTP for the editor frontend.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cuebase/tracksearch/internal/engine"
	"github.com/cuebase/tracksearch/internal/library"
	"github.com/cuebase/tracksearch/internal/track"
	pkgerrors "github.com/cuebase/tracksearch/pkg/errors"
	"github.com/cuebase/tracksearch/pkg/logger"
)

// SearchResponse is the indexed-path search reply.
type SearchResponse struct {
	Query     string        `json:"query"`
	Total     int           `json:"total"`
	Tracks    []track.Track `json:"tracks"`
	CacheHit  bool          `json:"cache_hit"`
	LatencyMs int64         `json:"latency_ms"`
}

// FilterRequest is the strategy-path request body.
type FilterRequest struct {
	Query       string   `json:"query_text"`
	Playlist    []string `json:"playlist_allowlist,omitempty"`
	MissingOnly bool     `json:"missing_only,omitempty"`
}

// FilterResponse is the strategy-path reply.
type FilterResponse struct {
	MatchedIDs []string `json:"matched_ids"`
	ElapsedMs  int64    `json:"elapsed_ms"`
	Delegated  bool     `json:"delegated"`
}

type Handler struct {
	library      *library.Library
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(lib *library.Library, defaultLimit, maxResults int) *Handler {
	return &Handler{
		library:      lib,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "http-handler"),
	}
}

// Register attaches all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/filter", h.Filter)
	mux.HandleFunc("PUT /api/v1/tracks", h.UpsertTrack)
	mux.HandleFunc("GET /api/v1/tracks/{id}", h.GetTrack)
	mux.HandleFunc("DELETE /api/v1/tracks/{id}", h.DeleteTrack)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	var playlist []string
	if raw := r.URL.Query().Get("playlist"); raw != "" {
		playlist = strings.Split(raw, ",")
	}
	missingOnly := false
	if raw := r.URL.Query().Get("missing"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "missing must be a boolean")
			return
		}
		missingOnly = parsed
	}
	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	tracks, cacheHit, err := h.library.Search(ctx, query, playlist, missingOnly)
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, pkgerrors.HTTPStatusCode(err), "search failed")
		return
	}
	total := len(tracks)
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"total", total,
		"returned", len(tracks),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.writeJSON(w, http.StatusOK, &SearchResponse{
		Query:     query,
		Total:     total,
		Tracks:    tracks,
		CacheHit:  cacheHit,
		LatencyMs: latencyMs,
	})
}

func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.library.Filter(ctx, engine.Options{
		Query:       req.Query,
		Playlist:    req.Playlist,
		MissingOnly: req.MissingOnly,
	})
	if err != nil {
		log.Error("filter failed", "query", req.Query, "error", err)
		h.writeError(w, pkgerrors.HTTPStatusCode(err), "filter failed")
		return
	}

	log.Info("filter completed",
		"query", req.Query,
		"matched", len(res.MatchedIDs),
		"delegated", res.Delegated,
		"elapsed", res.Elapsed,
	)
	h.writeJSON(w, http.StatusOK, &FilterResponse{
		MatchedIDs: res.MatchedIDs,
		ElapsedMs:  res.Elapsed.Milliseconds(),
		Delegated:  res.Delegated,
	})
}

func (h *Handler) UpsertTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var t track.Track
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if t.ID == "" {
		h.writeError(w, http.StatusBadRequest, "track id is required")
		return
	}
	if err := h.library.Upsert(ctx, t); err != nil {
		log.Error("track upsert failed", "id", t.ID, "error", err)
		h.writeError(w, pkgerrors.HTTPStatusCode(err), "upsert failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": t.ID, "status": "indexed"})
}

func (h *Handler) GetTrack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := h.library.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	id := r.PathValue("id")
	if err := h.library.Remove(ctx, id); err != nil {
		if errors.Is(err, pkgerrors.ErrTrackNotFound) {
			h.writeError(w, http.StatusNotFound, "track not found")
			return
		}
		log.Error("track delete failed", "id", id, "error", err)
		h.writeError(w, pkgerrors.HTTPStatusCode(err), "delete failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "removed"})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.library.Stats())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
