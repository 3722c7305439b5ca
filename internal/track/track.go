// Package track defines the track metadata record consumed by the search
// core. A Track is the indexed projection of a library entry, not the full
// editor-side object: only the fields that participate in text search plus
// the structural flags travel through the engine.
package track

import (
	"sort"
	"strings"
)

// Tag is a single (category, label) metadata pair attached to a track, e.g.
// ("mood", "driving") or ("energy", "high"). Both halves are folded into the
// searchable text.
type Tag struct {
	Category string `json:"category"`
	Label    string `json:"label"`
}

// Track is a library record. ID is opaque, stable for the record's lifetime,
// and never reused after deletion. All text fields are optional; a sparsely
// tagged track with no text at all is a valid record that simply contributes
// nothing to the index.
type Track struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Album   string `json:"album,omitempty"`
	Genre   string `json:"genre,omitempty"`
	Key     string `json:"key,omitempty"`
	Missing bool   `json:"missing,omitempty"`
	Tags    []Tag  `json:"tags,omitempty"`
}

// Projection is the minimal per-track payload shipped to the filter worker.
// It deliberately carries only what the linear scan needs: the ID, the
// pre-concatenated searchable text, and the missing flag.
type Projection struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Missing bool   `json:"missing,omitempty"`
}

// SearchableText returns the lowercase concatenation of every indexed field
// plus the flattened tag pairs, space-joined. Field order is fixed (name,
// artist, album, genre, key, tags sorted by category then label) so that the
// same track always produces the same text.
func (t Track) SearchableText() string {
	parts := make([]string, 0, 5+2*len(t.Tags))
	for _, field := range []string{t.Name, t.Artist, t.Album, t.Genre, t.Key} {
		if field != "" {
			parts = append(parts, field)
		}
	}
	if len(t.Tags) > 0 {
		tags := make([]Tag, len(t.Tags))
		copy(tags, t.Tags)
		sort.Slice(tags, func(i, j int) bool {
			if tags[i].Category != tags[j].Category {
				return tags[i].Category < tags[j].Category
			}
			return tags[i].Label < tags[j].Label
		})
		for _, tg := range tags {
			if tg.Category != "" {
				parts = append(parts, tg.Category)
			}
			if tg.Label != "" {
				parts = append(parts, tg.Label)
			}
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Project returns the worker-bound projection of t.
func (t Track) Project() Projection {
	return Projection{
		ID:      t.ID,
		Text:    t.SearchableText(),
		Missing: t.Missing,
	}
}

// ProjectAll maps a track slice to its projections.
func ProjectAll(tracks []Track) []Projection {
	out := make([]Projection, len(tracks))
	for i, t := range tracks {
		out[i] = t.Project()
	}
	return out
}
