package library

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cuebase/tracksearch/internal/engine"
	"github.com/cuebase/tracksearch/internal/track"
	"github.com/cuebase/tracksearch/pkg/config"
	pkgerrors "github.com/cuebase/tracksearch/pkg/errors"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	l := New(engine.New(config.EngineConfig{}), nil, nil, nil)
	l.Build([]track.Track{
		{ID: "1", Name: "Get Lucky", Artist: "Daft Punk"},
		{ID: "2", Name: "One More Time", Artist: "Daft Punk", Missing: true},
		{ID: "3", Name: "Around the World", Artist: "Daft Punk"},
	})
	return l
}

func searchIDs(t *testing.T, l *Library, query string, playlist []string, missingOnly bool) []string {
	t.Helper()
	tracks, _, err := l.Search(context.Background(), query, playlist, missingOnly)
	if err != nil {
		t.Fatalf("Search(%q): %v", query, err)
	}
	ids := make([]string, 0, len(tracks))
	for _, tr := range tracks {
		ids = append(ids, tr.ID)
	}
	return ids
}

func TestSearchTextQuery(t *testing.T) {
	l := newTestLibrary(t)

	if got := searchIDs(t, l, "lucky", nil, false); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("search(lucky) = %v, want [1]", got)
	}
	if got := searchIDs(t, l, "daft punk", nil, false); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("search(daft punk) = %v, want [1 2 3]", got)
	}
	if got := searchIDs(t, l, "xyz", nil, false); len(got) != 0 {
		t.Errorf("search(xyz) = %v, want empty", got)
	}
}

func TestSearchBlankQueryReturnsAll(t *testing.T) {
	l := newTestLibrary(t)
	if got := searchIDs(t, l, "   ", nil, false); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("blank search = %v, want all tracks in ID order", got)
	}
}

func TestSearchStructuralFilters(t *testing.T) {
	l := newTestLibrary(t)

	if got := searchIDs(t, l, "", []string{"2", "3"}, false); !reflect.DeepEqual(got, []string{"2", "3"}) {
		t.Errorf("playlist filter = %v, want [2 3]", got)
	}
	if got := searchIDs(t, l, "", []string{}, false); len(got) != 0 {
		t.Errorf("empty playlist = %v, want nothing", got)
	}
	if got := searchIDs(t, l, "", nil, true); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("missing-only = %v, want [2]", got)
	}
	if got := searchIDs(t, l, "daft", []string{"1", "2"}, true); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("compound filters = %v, want [2]", got)
	}
}

func TestUpsertRequiresID(t *testing.T) {
	l := newTestLibrary(t)
	err := l.Upsert(context.Background(), track.Track{Name: "No ID"})
	if !errors.Is(err, pkgerrors.ErrInvalidInput) {
		t.Errorf("Upsert without ID = %v, want ErrInvalidInput", err)
	}
	if code := pkgerrors.HTTPStatusCode(err); code != 400 {
		t.Errorf("status code = %d, want 400", code)
	}
}

func TestUpsertAndRemoveReflectInSearch(t *testing.T) {
	ctx := context.Background()
	l := newTestLibrary(t)

	if err := l.Upsert(ctx, track.Track{ID: "4", Name: "Voyager", Artist: "Daft Punk"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got := searchIDs(t, l, "voyager", nil, false); !reflect.DeepEqual(got, []string{"4"}) {
		t.Errorf("search(voyager) = %v, want [4]", got)
	}
	if l.Len() != 4 {
		t.Errorf("Len = %d, want 4", l.Len())
	}

	// Edits retract the old text.
	if err := l.Upsert(ctx, track.Track{ID: "4", Name: "Contact", Artist: "Daft Punk"}); err != nil {
		t.Fatalf("Upsert edit: %v", err)
	}
	if got := searchIDs(t, l, "voyager", nil, false); len(got) != 0 {
		t.Errorf("stale text still matches after edit: %v", got)
	}

	if err := l.Remove(ctx, "2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := searchIDs(t, l, "one more", nil, false); len(got) != 0 {
		t.Errorf("removed track still matches: %v", got)
	}
	if _, ok := l.Get("2"); ok {
		t.Error("removed track still retrievable")
	}
}

func TestRemoveUnknownWithoutStore(t *testing.T) {
	l := newTestLibrary(t)
	if err := l.Remove(context.Background(), "nope"); err != nil {
		t.Errorf("Remove unknown without store = %v, want nil", err)
	}
}

func TestFilterStrategyPath(t *testing.T) {
	l := newTestLibrary(t)

	res, err := l.Filter(context.Background(), engine.Options{Query: "daft", MissingOnly: true})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if !reflect.DeepEqual(res.MatchedIDs, []string{"2"}) {
		t.Errorf("Filter = %v, want [2]", res.MatchedIDs)
	}
	if res.Delegated {
		t.Error("small collection should run inline")
	}
}

func TestStats(t *testing.T) {
	l := newTestLibrary(t)
	stats := l.Stats()
	if stats.Tracks != 3 {
		t.Errorf("stats.Tracks = %d, want 3", stats.Tracks)
	}
	if stats.Terms == 0 {
		t.Error("stats.Terms = 0, want indexed terms")
	}
	if stats.Engine.WorkerUp {
		t.Error("worker reported up before Start")
	}
}

func TestBuildIsReplacement(t *testing.T) {
	l := newTestLibrary(t)
	l.Build([]track.Track{{ID: "9", Name: "Genesis", Artist: "Justice"}})

	if got := searchIDs(t, l, "daft", nil, false); len(got) != 0 {
		t.Errorf("old collection survived rebuild: %v", got)
	}
	if got := searchIDs(t, l, "genesis", nil, false); !reflect.DeepEqual(got, []string{"9"}) {
		t.Errorf("search(genesis) = %v, want [9]", got)
	}
}
