// Package search plans and verifies substring queries against the inverted
// index. The index alone over-approximates: its n-gram intersection can admit
// tracks whose text supplies every window of a multi-word query without ever
// containing the query as a contiguous substring. The planner closes that gap
// with a mandatory literal re-check against the canonical text cache.
package search

import (
	"strings"

	"github.com/cuebase/tracksearch/internal/index"
	"github.com/cuebase/tracksearch/internal/tokenizer"
	"github.com/cuebase/tracksearch/internal/track"
)

// SearchIDs returns the verified set of track IDs whose indexed text contains
// query as a literal, case-insensitive substring. matchAll is true when the
// query is empty or whitespace-only, in which case the caller must treat the
// result as "no text filter" rather than "no matches".
//
// The verification pass is O(candidates) and dominates only for short,
// generic queries over a large index, an accepted, bounded tradeoff versus
// suffix-structure alternatives.
func SearchIDs(ix *index.Index, query string) (ids map[string]struct{}, matchAll bool) {
	candidates, matchAll := ix.Query(query)
	if matchAll {
		return nil, true
	}
	needle := tokenizer.Normalize(query)
	verified := make(map[string]struct{}, len(candidates))
	for id := range candidates {
		text, ok := ix.CanonicalText(id)
		if ok && strings.Contains(text, needle) {
			verified[id] = struct{}{}
		}
	}
	return verified, false
}

// Search filters tracks down to those whose indexed text contains query,
// preserving the input order. A match-all query returns the input unfiltered.
func Search(ix *index.Index, query string, tracks []track.Track) []track.Track {
	ids, matchAll := SearchIDs(ix, query)
	if matchAll {
		return tracks
	}
	out := make([]track.Track, 0, len(ids))
	for _, t := range tracks {
		if _, ok := ids[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}
