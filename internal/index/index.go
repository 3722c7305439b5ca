// Package index implements the in-memory inverted n-gram index over track
// metadata. It maps every tokenized term to the set of track IDs containing
// it and keeps, per track, the exact canonical text last indexed, the single
// source of truth for incremental retraction and for post-query match
// verification.
//
// The index has no internal locking: it is a single-owner structure, and the
// owning component (internal/library) serializes every call. See the
// concurrency notes there.
package index

import (
	"time"

	"github.com/cuebase/tracksearch/internal/tokenizer"
	"github.com/cuebase/tracksearch/internal/track"
)

// Index is the inverted index plus the canonical text cache. Invariants held
// after every operation:
//
//   - a term entry exists iff at least one track currently contributes it
//     (empty sets are pruned immediately, never left behind)
//   - every track ID in any term set has a canonical text entry
//   - the terms referencing a track are exactly Tokenize(canonical[id])
type Index struct {
	terms     map[string]map[string]struct{}
	canonical map[string]string
	buildTime time.Duration
}

// New returns an empty index.
func New() *Index {
	return &Index{
		terms:     make(map[string]map[string]struct{}),
		canonical: make(map[string]string),
	}
}

// Build clears any prior state and indexes every supplied track. Zero tracks
// is valid and produces an empty index. Cost is linear in total indexed
// characters; the elapsed time is recorded as diagnostic metadata.
func (ix *Index) Build(tracks []track.Track) {
	start := time.Now()
	ix.terms = make(map[string]map[string]struct{}, len(ix.terms))
	ix.canonical = make(map[string]string, len(tracks))
	for _, t := range tracks {
		ix.insert(t.ID, t.SearchableText())
	}
	ix.buildTime = time.Since(start)
}

// Upsert indexes one track, first retracting its previous contribution if it
// was already indexed. Safe when old and new text overlap heavily: shared
// terms are removed then re-added within the same call.
func (ix *Index) Upsert(t track.Track) {
	ix.Remove(t.ID)
	ix.insert(t.ID, t.SearchableText())
}

// Remove retracts a track from the index. Removing an ID that was never
// indexed is a no-op, not an error: the owning application may legitimately
// race a deletion against an already-evicted record.
func (ix *Index) Remove(id string) {
	text, ok := ix.canonical[id]
	if !ok {
		return
	}
	for term := range tokenizer.Tokenize(text) {
		set, ok := ix.terms[term]
		if !ok {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(ix.terms, term)
		}
	}
	delete(ix.canonical, id)
}

func (ix *Index) insert(id, text string) {
	for term := range tokenizer.Tokenize(text) {
		set, ok := ix.terms[term]
		if !ok {
			set = make(map[string]struct{})
			ix.terms[term] = set
		}
		set[id] = struct{}{}
	}
	ix.canonical[id] = text
}

// Query derives the query's n-gram terms and intersects their candidate sets
// (AND semantics), short-circuiting to an empty result the moment the running
// intersection empties. The returned set is a candidate set only: independent
// n-gram windows can all be present without the literal query substring
// appearing contiguously, so callers must verify candidates against the
// canonical text (see internal/search).
//
// An empty term derivation (empty or whitespace-only query) returns matchAll
// true, meaning "do not filter by text", never "match nothing".
func (ix *Index) Query(query string) (ids map[string]struct{}, matchAll bool) {
	terms := tokenizer.QueryTerms(query)
	if len(terms) == 0 {
		return nil, true
	}
	// Probe the smallest candidate set first so the intersection shrinks
	// as early as possible.
	ordered := make([]string, 0, len(terms))
	for term := range terms {
		if _, ok := ix.terms[term]; !ok {
			return map[string]struct{}{}, false
		}
		ordered = append(ordered, term)
	}
	smallest := 0
	for i, term := range ordered {
		if len(ix.terms[term]) < len(ix.terms[ordered[smallest]]) {
			smallest = i
		}
	}
	ordered[0], ordered[smallest] = ordered[smallest], ordered[0]

	candidates := make(map[string]struct{}, len(ix.terms[ordered[0]]))
	for id := range ix.terms[ordered[0]] {
		candidates[id] = struct{}{}
	}
	for _, term := range ordered[1:] {
		set := ix.terms[term]
		for id := range candidates {
			if _, ok := set[id]; !ok {
				delete(candidates, id)
			}
		}
		if len(candidates) == 0 {
			return candidates, false
		}
	}
	return candidates, false
}

// CanonicalText returns the exact text last indexed for id.
func (ix *Index) CanonicalText(id string) (string, bool) {
	text, ok := ix.canonical[id]
	return text, ok
}

// Len reports the number of indexed tracks.
func (ix *Index) Len() int {
	return len(ix.canonical)
}

// TermCount reports the number of distinct terms currently held.
func (ix *Index) TermCount() int {
	return len(ix.terms)
}

// BuildDuration reports how long the most recent Build took. Diagnostic
// only.
func (ix *Index) BuildDuration() time.Duration {
	return ix.buildTime
}

// TermIDs returns a copy of the ID set for term. Test and diagnostic hook.
func (ix *Index) TermIDs(term string) []string {
	set, ok := ix.terms[term]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Terms returns the number of IDs per term for every term. Test and
// diagnostic hook.
func (ix *Index) Terms() map[string]int {
	out := make(map[string]int, len(ix.terms))
	for term, set := range ix.terms {
		out[term] = len(set)
	}
	return out
}
