package engine

import (
	"strings"

	"github.com/cuebase/tracksearch/internal/tokenizer"
	"github.com/cuebase/tracksearch/internal/track"
)

// Options are the filter predicates for one invocation. Playlist is an ID
// allowlist; nil means no playlist filter (an empty non-nil list matches
// nothing). An empty or whitespace-only Query means no text filter.
type Options struct {
	Query       string
	Playlist    []string
	MissingOnly bool
}

// matcher is the compiled form of Options used by the linear scan. The same
// scan runs on both execution paths; the inline path and the worker differ
// only in which goroutine performs it.
type matcher struct {
	query       string
	allowlist   map[string]struct{}
	missingOnly bool
}

func newMatcher(query string, playlist []string, missingOnly bool) matcher {
	m := matcher{
		query:       tokenizer.Normalize(query),
		missingOnly: missingOnly,
	}
	if playlist != nil {
		m.allowlist = make(map[string]struct{}, len(playlist))
		for _, id := range playlist {
			m.allowlist[id] = struct{}{}
		}
	}
	return m
}

// matches applies the structural predicates first, then the case-insensitive
// substring check. text must already be lowercase (SearchableText guarantees
// it).
func (m matcher) matches(id, text string, missing bool) bool {
	if m.missingOnly && !missing {
		return false
	}
	if m.allowlist != nil {
		if _, ok := m.allowlist[id]; !ok {
			return false
		}
	}
	if m.query != "" && !strings.Contains(text, m.query) {
		return false
	}
	return true
}

func scanTracks(tracks []track.Track, m matcher) []string {
	matched := make([]string, 0)
	for _, t := range tracks {
		if m.matches(t.ID, t.SearchableText(), t.Missing) {
			matched = append(matched, t.ID)
		}
	}
	return matched
}

func scanProjections(projections []track.Projection, m matcher) []string {
	matched := make([]string, 0)
	for _, p := range projections {
		if m.matches(p.ID, p.Text, p.Missing) {
			matched = append(matched, p.ID)
		}
	}
	return matched
}
