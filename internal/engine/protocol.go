package engine

import "github.com/cuebase/tracksearch/internal/track"

// Message kinds exchanged with the filter worker. The protocol is internal
// and not wire-stable across versions, but a request and its result are
// always paired by RequestID.
const (
	kindFilterRequest = "filter_request"
	kindFilterResult  = "filter_result"
)

// filterRequest carries one filter invocation to the worker: the minimal
// per-track projections plus the query text and structural predicates.
// Nothing else crosses the boundary: the worker never sees the index or the
// full track objects.
type filterRequest struct {
	Kind        string             `json:"kind"`
	RequestID   string             `json:"request_id"`
	Tracks      []track.Projection `json:"records"`
	Query       string             `json:"query_text"`
	Playlist    []string           `json:"playlist_allowlist,omitempty"`
	MissingOnly bool               `json:"missing_only,omitempty"`
}

// filterResult is the worker's reply for one request.
type filterResult struct {
	Kind       string   `json:"kind"`
	RequestID  string   `json:"request_id"`
	MatchedIDs []string `json:"matched_ids"`
	ElapsedMs  int64    `json:"elapsed_ms"`
}
