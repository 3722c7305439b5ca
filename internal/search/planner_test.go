package search

import (
	"reflect"
	"sort"
	"testing"

	"github.com/cuebase/tracksearch/internal/index"
	"github.com/cuebase/tracksearch/internal/track"
)

func buildIndex(tracks []track.Track) *index.Index {
	ix := index.New()
	ix.Build(tracks)
	return ix
}

func idsOf(tracks []track.Track) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestSearchIDsVerificationDropsFalsePositives(t *testing.T) {
	// Each text supplies every n-gram window of both query words without the
	// literal string "daft punk" ever appearing contiguously, so the raw
	// intersection admits both tracks and verification must reject both.
	tracks := []track.Track{
		{ID: "1", Name: "punk daft"},
		{ID: "2", Name: "daftish punkish"},
	}
	ix := buildIndex(tracks)

	candidates, matchAll := ix.Query("daft punk")
	if matchAll {
		t.Fatal("unexpected match-all")
	}
	if len(candidates) != 2 {
		t.Fatalf("expected both tracks as raw candidates, got %v", candidates)
	}

	ids, matchAll := SearchIDs(ix, "daft punk")
	if matchAll {
		t.Fatal("unexpected match-all")
	}
	if len(ids) != 0 {
		t.Errorf("verification pass kept candidates without the literal query substring: %v", ids)
	}
}

func TestSearchIDsKeepsTrueMatches(t *testing.T) {
	tracks := []track.Track{
		{ID: "1", Name: "Get Lucky", Artist: "Daft Punk"},
		{ID: "2", Name: "punk daft"},
	}
	ix := buildIndex(tracks)

	ids, _ := SearchIDs(ix, "daft punk")
	if _, ok := ids["1"]; !ok {
		t.Errorf("true match dropped: %v", ids)
	}
	if _, ok := ids["2"]; ok {
		t.Errorf("false positive survived verification: %v", ids)
	}
}

func TestSearchIDsMatchAll(t *testing.T) {
	ix := buildIndex([]track.Track{{ID: "1", Name: "x y"}})
	if _, matchAll := SearchIDs(ix, "  "); !matchAll {
		t.Error("blank query should signal match-all")
	}
}

func TestSearchPreservesInputOrder(t *testing.T) {
	tracks := []track.Track{
		{ID: "3", Name: "Around the World", Artist: "Daft Punk"},
		{ID: "1", Name: "Get Lucky", Artist: "Daft Punk"},
		{ID: "2", Name: "One More Time", Artist: "Daft Punk"},
	}
	ix := buildIndex(tracks)

	got := idsOf(Search(ix, "daft punk", tracks))
	if !reflect.DeepEqual(got, []string{"3", "1", "2"}) {
		t.Errorf("result order = %v, want input order [3 1 2]", got)
	}
}

func TestSearchEndToEnd(t *testing.T) {
	tracks := []track.Track{
		{ID: "1", Name: "Get Lucky", Artist: "Daft Punk"},
		{ID: "2", Name: "One More Time", Artist: "Daft Punk"},
		{ID: "3", Name: "Around the World", Artist: "Daft Punk"},
	}
	ix := buildIndex(tracks)

	search := func(query string) []string {
		ids := idsOf(Search(ix, query, tracks))
		sort.Strings(ids)
		return ids
	}

	if got := search("lucky"); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("search(lucky) = %v, want [1]", got)
	}
	if got := search("daft punk"); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("search(daft punk) = %v, want [1 2 3]", got)
	}
	if got := search("xyz"); len(got) != 0 {
		t.Errorf("search(xyz) = %v, want empty", got)
	}

	ix.Remove("2")
	if got := search("one more"); len(got) != 0 {
		t.Errorf("search(one more) after removal = %v, want empty", got)
	}
	if got := search("daft punk"); !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("search(daft punk) after removal = %v, want [1 3]", got)
	}
}

func TestSearchANDSemantics(t *testing.T) {
	tracks := []track.Track{
		{ID: "1", Name: "Get Lucky", Artist: "Daft Punk"},
		{ID: "2", Name: "One More Time", Artist: "Daft Punk"},
		{ID: "3", Name: "Around the World", Artist: "Daft Punk"},
	}
	ix := buildIndex(tracks)

	// Both words appear together only in track 2's text.
	if got := idsOf(Search(ix, "more time", tracks)); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("search(more time) = %v, want [2]", got)
	}

	// "lucky" and "world" each match a track, but never the same one.
	if got := Search(ix, "lucky world", tracks); len(got) != 0 {
		t.Errorf("search(lucky world) = %v, want empty", got)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	tracks := []track.Track{{ID: "1", Name: "Get Lucky", Artist: "Daft Punk"}}
	ix := buildIndex(tracks)

	for _, query := range []string{"LUCKY", "Daft PUNK", "get lucky"} {
		if got := Search(ix, query, tracks); len(got) != 1 {
			t.Errorf("search(%q) = %d results, want 1", query, len(got))
		}
	}
}
